package radio

// TrackInfo is a track as reported by the playback backend.
type TrackInfo struct {
	ID      string
	Title   string
	Artists []string
}

// Valid reports whether the track carries enough data to be displayed.
func (t TrackInfo) Valid() bool {
	return t.Title != "" && len(t.Artists) > 0
}

// Kind identifies which variant of Result is populated
type Kind int

const (
	KindTrack Kind = iota
	KindTrackList
	KindListenerCount
	KindShuffled
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindTrackList:
		return "track_list"
	case KindListenerCount:
		return "listener_count"
	case KindShuffled:
		return "shuffled"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Result is the normalized shape every successful backend call collapses into
// before it is formatted for a chat network.
type Result struct {
	Kind Kind

	Track  TrackInfo
	Tracks []TrackInfo
	URL    string

	// Listeners decorates a Track result (or is the payload of a
	// ListenerCount result) when HasListeners is set.
	Listeners    int
	HasListeners bool
}

// TrackResult wraps a single track.
func TrackResult(t TrackInfo) Result {
	return Result{Kind: KindTrack, Track: t}
}

// TrackListResult wraps a list of tracks. An empty list is a valid result.
func TrackListResult(tracks []TrackInfo) Result {
	return Result{Kind: KindTrackList, Tracks: tracks}
}

// ListenerCountResult wraps a bare listener count.
func ListenerCountResult(n int) Result {
	return Result{Kind: KindListenerCount, Listeners: n, HasListeners: true}
}

// ShuffledResult acknowledges a shuffle.
func ShuffledResult() Result {
	return Result{Kind: KindShuffled}
}

// URLResult wraps a link to the current track.
func URLResult(url string) Result {
	return Result{Kind: KindURL, URL: url}
}

// WithListeners returns a copy of r decorated with a listener count.
func (r Result) WithListeners(n int) Result {
	r.Listeners = n
	r.HasListeners = true
	return r
}

package playback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

// trackJSON covers both track shapes the backend emits: search hits use
// Spotify's {name, artists:[{name}]} while the player endpoints answer with
// {track, artists:[string]}.
type trackJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Track   string       `json:"track"`
	Artists []artistJSON `json:"artists"`
}

type artistJSON string

func (a *artistJSON) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = artistJSON(name)
		return nil
	}

	var artist struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &artist); err != nil {
		return err
	}
	*a = artistJSON(artist.Name)
	return nil
}

func (t trackJSON) info() (radio.TrackInfo, error) {
	info := radio.TrackInfo{ID: t.ID, Title: t.Name}
	if info.Title == "" {
		info.Title = t.Track
	}
	for _, artist := range t.Artists {
		if artist != "" {
			info.Artists = append(info.Artists, string(artist))
		}
	}

	if !info.Valid() {
		return radio.TrackInfo{}, fmt.Errorf("track %q without title or artists: %w", t.ID, radio.ErrMalformedResponse)
	}
	return info, nil
}

// errorJSON is the backend's error envelope.
type errorJSON struct {
	Error json.RawMessage `json:"error"`
}

// backendError extracts a backend-declared error from body, or returns nil
// when body is not an error envelope. Empty or falsy error values do not
// count as errors.
func backendError(body []byte) error {
	var envelope errorJSON
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	switch string(envelope.Error) {
	case "", "null", "false", "0":
		return nil
	}

	var message string
	if err := json.Unmarshal(envelope.Error, &message); err != nil {
		message = string(envelope.Error)
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return &radio.BackendError{Message: message}
}

func decodeTrack(body []byte) (radio.TrackInfo, error) {
	var track trackJSON
	if err := json.Unmarshal(body, &track); err != nil {
		return radio.TrackInfo{}, fmt.Errorf("failed to decode track: %w: %v", radio.ErrMalformedResponse, err)
	}
	return track.info()
}

func decodeTracks(body []byte) ([]radio.TrackInfo, error) {
	var tracks []trackJSON
	if err := json.Unmarshal(body, &tracks); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w: %v", radio.ErrMalformedResponse, err)
	}

	infos := make([]radio.TrackInfo, 0, len(tracks))
	for _, track := range tracks {
		info, err := track.info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

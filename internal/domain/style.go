package domain

import "strings"

// MusicStyle is a supported generation style.
type MusicStyle string

const (
	StylePop        MusicStyle = "pop"
	StyleRap        MusicStyle = "rap"
	StyleFolk       MusicStyle = "folk"
	StyleElectronic MusicStyle = "electronic"
	StyleRock       MusicStyle = "rock"
	StyleJazz       MusicStyle = "jazz"
	StyleChildren   MusicStyle = "children"
	StyleBallad     MusicStyle = "ballad"
)

var styleTags = map[MusicStyle]string{
	StylePop:        "pop, catchy, upbeat",
	StyleRap:        "rap, hip-hop, rhythmic",
	StyleFolk:       "folk, acoustic, storytelling",
	StyleElectronic: "electronic, synth, dance",
	StyleRock:       "rock, electric guitar, energetic",
	StyleJazz:       "jazz, smooth, swing",
	StyleChildren:   "children's song, playful, simple melody",
	StyleBallad:     "ballad, emotional, slow",
}

// ParseMusicStyle normalizes s and checks it is supported.
func ParseMusicStyle(s string) (MusicStyle, error) {
	style := MusicStyle(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleTags[style]; !ok {
		return "", &ValidationError{Field: "style", Message: "unsupported music style " + s}
	}
	return style, nil
}

// Tags returns the style description sent to the generation service.
func (s MusicStyle) Tags() string {
	if tags, ok := styleTags[s]; ok {
		return tags
	}
	return string(s)
}

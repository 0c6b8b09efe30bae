package codecs

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// Codec is one row of `ffmpeg -codecs`.
type Codec struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // video, audio, subtitle, data
	Decode      bool   `json:"decode"`
	Encode      bool   `json:"encode"`
	Description string `json:"description"`
}

// Encoder is one row of `ffmpeg -encoders`.
type Encoder struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// Format is one row of `ffmpeg -formats`.
type Format struct {
	Name        string `json:"name"`
	Demux       bool   `json:"demux"`
	Mux         bool   `json:"mux"`
	Description string `json:"description"`
}

var (
	codecRe   = regexp.MustCompile(`^\s([D.])([E.])([VASDT.])[I.][L.][S.]\s+(\S+)\s+(.*)$`)
	encoderRe = regexp.MustCompile(`^\s([VASD])[F.][S.][X.][B.][D.]\s+(\S+)\s+(.*)$`)
	formatRe  = regexp.MustCompile(`^\s([D ])([E ])[d ]?\s(\S+)\s+(.*)$`)
)

func kindOf(c string) string {
	switch c {
	case "V":
		return "video"
	case "A":
		return "audio"
	case "S":
		return "subtitle"
	default:
		return "data"
	}
}

func lines(out []byte, fn func(string)) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fn(sc.Text())
	}
}

// ParseCodecs reads `ffmpeg -hide_banner -codecs` output.
func ParseCodecs(out []byte) []Codec {
	var res []Codec
	lines(out, func(l string) {
		m := codecRe.FindStringSubmatch(l)
		if m == nil || m[4] == "=" {
			return
		}
		res = append(res, Codec{
			Name:        m[4],
			Kind:        kindOf(m[3]),
			Decode:      m[1] == "D",
			Encode:      m[2] == "E",
			Description: strings.TrimSpace(m[5]),
		})
	})
	return res
}

// ParseEncoders reads `ffmpeg -hide_banner -encoders` output.
func ParseEncoders(out []byte) []Encoder {
	var res []Encoder
	lines(out, func(l string) {
		m := encoderRe.FindStringSubmatch(l)
		if m == nil || m[2] == "=" {
			return
		}
		res = append(res, Encoder{Name: m[2], Kind: kindOf(m[1]), Description: strings.TrimSpace(m[3])})
	})
	return res
}

// ParseFormats reads `ffmpeg -hide_banner -formats` output. Comma-joined
// demuxer names are split into one entry each.
func ParseFormats(out []byte) []Format {
	var res []Format
	lines(out, func(l string) {
		m := formatRe.FindStringSubmatch(l)
		if m == nil || m[3] == "=" || (m[1] == " " && m[2] == " ") {
			return
		}
		for _, name := range strings.Split(m[3], ",") {
			res = append(res, Format{
				Name:        name,
				Demux:       m[1] == "D",
				Mux:         m[2] == "E",
				Description: strings.TrimSpace(m[4]),
			})
		}
	})
	return res
}

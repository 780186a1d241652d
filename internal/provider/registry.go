package provider

import (
	"fmt"
	"strings"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
)

// Payload is the client-supplied input for a job, decoded as-is from JSON.
type Payload map[string]any

func (p Payload) str(key string) string {
	if v, ok := p[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func (p Payload) num(key string, fallback int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// Descriptor holds everything kind-specific: the endpoint to hit, the price,
// the provider's expected field names, and input validation. Field-name
// differences between job kinds live here and nowhere else.
type Descriptor struct {
	Kind        domain.JobKind
	EndpointKey string
	CreditsFor  func(p Payload) int64
	BuildInput  func(p Payload) (map[string]any, error)
	Validate    func(p Payload) error
}

var registry = map[domain.JobKind]Descriptor{
	domain.JobKindImageGenerate: {
		Kind:        domain.JobKindImageGenerate,
		EndpointKey: "image_generate",
		CreditsFor:  func(Payload) int64 { return 10 },
		Validate: func(p Payload) error {
			if p.str("prompt") == "" {
				return fmt.Errorf("%w: prompt is required", domain.ErrInvalidPayload)
			}
			return nil
		},
		BuildInput: func(p Payload) (map[string]any, error) {
			input := map[string]any{"prompt": p.str("prompt")}
			if neg := p.str("negative_prompt"); neg != "" {
				input["negative_prompt"] = neg
			}
			if ar := p.str("aspect_ratio"); ar != "" {
				input["aspect_ratio"] = ar
			}
			return input, nil
		},
	},
	domain.JobKindImageUpscale: {
		Kind:        domain.JobKindImageUpscale,
		EndpointKey: "image_upscale",
		// 2x is the base price; 4x doubles it.
		CreditsFor: func(p Payload) int64 { return 5 * int64(p.num("scale", 2)) / 2 },
		Validate: func(p Payload) error {
			if p.str("image") == "" {
				return fmt.Errorf("%w: image is required", domain.ErrInvalidPayload)
			}
			if scale := p.num("scale", 2); scale != 2 && scale != 4 {
				return fmt.Errorf("%w: scale must be 2 or 4", domain.ErrInvalidPayload)
			}
			return nil
		},
		BuildInput: func(p Payload) (map[string]any, error) {
			return map[string]any{
				"image": p.str("image"),
				"scale": p.num("scale", 2),
			}, nil
		},
	},
	domain.JobKindImageRestore: {
		Kind:        domain.JobKindImageRestore,
		EndpointKey: "image_restore",
		CreditsFor:  func(Payload) int64 { return 5 },
		Validate: func(p Payload) error {
			if p.str("image") == "" {
				return fmt.Errorf("%w: image is required", domain.ErrInvalidPayload)
			}
			return nil
		},
		// This integration names the source field "img", not "image".
		BuildInput: func(p Payload) (map[string]any, error) {
			input := map[string]any{"img": p.str("image")}
			if v, ok := p["fidelity"].(float64); ok {
				input["fidelity"] = v
			}
			return input, nil
		},
	},
	domain.JobKindVideoGenerate: {
		Kind:        domain.JobKindVideoGenerate,
		EndpointKey: "video_generate",
		CreditsFor:  func(Payload) int64 { return 50 },
		Validate: func(p Payload) error {
			if p.str("prompt") == "" {
				return fmt.Errorf("%w: prompt is required", domain.ErrInvalidPayload)
			}
			if d := p.num("duration_seconds", 5); d < 1 || d > 30 {
				return fmt.Errorf("%w: duration_seconds must be between 1 and 30", domain.ErrInvalidPayload)
			}
			return nil
		},
		BuildInput: func(p Payload) (map[string]any, error) {
			return map[string]any{
				"prompt":           p.str("prompt"),
				"duration_seconds": p.num("duration_seconds", 5),
			}, nil
		},
	},
	domain.JobKindAudioTranscribe: {
		Kind:        domain.JobKindAudioTranscribe,
		EndpointKey: "audio_transcribe",
		CreditsFor:  func(Payload) int64 { return 8 },
		Validate: func(p Payload) error {
			if p.str("audio") == "" {
				return fmt.Errorf("%w: audio is required", domain.ErrInvalidPayload)
			}
			return nil
		},
		BuildInput: func(p Payload) (map[string]any, error) {
			input := map[string]any{"audio": p.str("audio")}
			if lang := p.str("language"); lang != "" {
				input["language"] = lang
			}
			return input, nil
		},
	},
}

// Lookup resolves the descriptor for a job kind.
func Lookup(kind domain.JobKind) (Descriptor, bool) {
	d, ok := registry[kind]
	return d, ok
}

// Kinds returns every registered job kind.
func Kinds() []domain.JobKind {
	kinds := make([]domain.JobKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// EndpointKeys returns the endpoint configuration keys the adapter needs.
func EndpointKeys() []string {
	keys := make([]string, 0, len(registry))
	for _, d := range registry {
		keys = append(keys, d.EndpointKey)
	}
	return keys
}

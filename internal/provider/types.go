// Package provider provides an HTTP client for external AI music-video
// generation services that accept a prompt plus media paths and answer
// with a downloadable video URL.
package provider

// GenerateRequest is the payload sent to the provider's generation
// endpoint.
type GenerateRequest struct {
	// Prompt is the final resolved prompt text.
	Prompt string
	// AudioPath locates the audio track on shared storage.
	AudioPath string
	// BackgroundVideoPath locates the optional background clip. Omitted
	// from the payload when empty.
	BackgroundVideoPath string
	// Extra holds provider-specific payload fields merged into the
	// request body.
	Extra map[string]any
}

// generateRequestBody is the wire form of a generation request.
type generateRequestBody map[string]any

func (r GenerateRequest) toBody() generateRequestBody {
	body := generateRequestBody{
		"prompt":     r.Prompt,
		"audio_path": r.AudioPath,
	}
	if r.BackgroundVideoPath != "" {
		body["background_video_path"] = r.BackgroundVideoPath
	}
	for k, v := range r.Extra {
		body[k] = v
	}
	return body
}

// generateResponse is the wire form of a generation response.
type generateResponse struct {
	VideoURL string `json:"video_url"`
	Error    string `json:"error,omitempty"`
}

// GenerateResult contains the outcome of a successful generation call.
type GenerateResult struct {
	// VideoURL is where the rendered video can be downloaded from.
	VideoURL string
	// RequestPayload is the JSON body that was sent, kept for auditing.
	RequestPayload string
	// ResponseRaw is the raw response body, kept for auditing.
	ResponseRaw string
}

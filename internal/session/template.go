package session

import (
	"strings"

	"github.com/tourplanner/travel-service/internal/model"
)

// RenderLlama formats turns with the Llama-3-Instruct chat template and
// appends the trailing assistant header that cues the model to respond.
func RenderLlama(turns []model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i == 0 {
			b.WriteString("<|begin_of_text|>")
		}
		b.WriteString("<|start_header_id|>")
		b.WriteString(string(t.Role))
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(t.Content)
		b.WriteString("<|eot_id|>")
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}

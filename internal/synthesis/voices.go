package synthesis

import (
	"math/rand"
	"strings"
)

// Voice describes one entry of the standard voice pool.
type Voice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	Language  string `json:"language"`
	Type      string `json:"type"`
	SampleURL string `json:"sample_url"`
}

// standardVoices is the built-in pool. A production deployment would query
// the synthesis service for its catalog instead.
var standardVoices = []Voice{
	{ID: "en-US-Wavenet-A", Name: "US English (Wavenet A)", Gender: "FEMALE", Language: "en-US", Type: "standard", SampleURL: "https://example.com/samples/en-US-Wavenet-A.wav"},
	{ID: "en-US-Wavenet-B", Name: "US English (Wavenet B)", Gender: "MALE", Language: "en-US", Type: "standard", SampleURL: "https://example.com/samples/en-US-Wavenet-B.wav"},
	{ID: "en-US-Wavenet-C", Name: "US English (Wavenet C)", Gender: "FEMALE", Language: "en-US", Type: "standard", SampleURL: "https://example.com/samples/en-US-Wavenet-C.wav"},
	{ID: "en-US-Wavenet-D", Name: "US English (Wavenet D)", Gender: "MALE", Language: "en-US", Type: "standard", SampleURL: "https://example.com/samples/en-US-Wavenet-D.wav"},
}

// StandardVoices returns the voice pool, optionally filtered by language
// and/or gender (case-insensitive).
func StandardVoices(language, gender string) []Voice {
	voices := make([]Voice, 0, len(standardVoices))
	for _, v := range standardVoices {
		if language != "" && !strings.EqualFold(v.Language, language) {
			continue
		}
		if gender != "" && !strings.EqualFold(v.Gender, gender) {
			continue
		}
		voices = append(voices, v)
	}
	return voices
}

// StandardVoiceIDs returns the ids of the full pool.
func StandardVoiceIDs() []string {
	ids := make([]string, len(standardVoices))
	for i, v := range standardVoices {
		ids[i] = v.ID
	}
	return ids
}

// PickStandardVoice auto-selects a voice for jobs that supply none.
func PickStandardVoice() string {
	return standardVoices[rand.Intn(len(standardVoices))].ID
}

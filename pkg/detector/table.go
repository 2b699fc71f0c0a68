package detector

import "github.com/samber/lo"

// Advice is the canned guidance shown for a predicted disease.
type Advice struct {
	Precautions   []string `json:"precautions"`
	Solution      string   `json:"solution"`
	PesticideType string   `json:"pesticide_type"`
	Brand         string   `json:"brand"`
}

type tableEntry struct {
	label  string
	advice Advice
}

// entries keeps the display order stable.
var entries = []tableEntry{
	{
		label: "Maize ear rot",
		advice: Advice{
			Precautions: []string{
				"Avoid planting maize in fields previously infected.",
				"Ensure proper spacing between plants to improve air circulation.",
				"Remove and dispose of infected ears promptly.",
			},
			Solution:      "Apply a fungicide with active ingredients like Chlorothalonil or Mancozeb.",
			PesticideType: "Fungicide",
			Brand:         "Agri-Fos",
		},
	},
	{
		label: "Blight",
		advice: Advice{
			Precautions: []string{
				"Use resistant crop varieties if available.",
				"Rotate crops and avoid planting in the same field annually.",
				"Water plants early in the day to allow foliage to dry before evening.",
			},
			Solution:      "Apply a copper-based fungicide or a systemic fungicide like Propiconazole.",
			PesticideType: "Fungicide",
			Brand:         "Copper Fungicide",
		},
	},
	{
		label: "Leaf Spot",
		advice: Advice{
			Precautions: []string{
				"Ensure good air circulation around plants.",
				"Avoid overhead irrigation to minimize leaf wetness.",
				"Remove and destroy infected plant debris.",
			},
			Solution:      "Use a fungicide containing Azoxystrobin or Pyraclostrobin.",
			PesticideType: "Fungicide",
			Brand:         "Strobe Pro",
		},
	},
	{
		label: "Rust",
		advice: Advice{
			Precautions: []string{
				"Use rust-resistant plant varieties.",
				"Avoid planting in fields with high humidity and poor air circulation.",
				"Regularly monitor plants for early signs of rust.",
			},
			Solution:      "Apply a systemic fungicide like Triazole or Chlorothalonil.",
			PesticideType: "Fungicide",
			Brand:         "Rust-Off",
		},
	},
}

var byLabel = lo.SliceToMap(entries, func(e tableEntry) (string, Advice) {
	return e.label, e.advice
})

// Labels returns the known disease labels in table order.
func Labels() []string {
	return lo.Map(entries, func(e tableEntry, _ int) string { return e.label })
}

// Lookup returns a copy of the advice for label.
func Lookup(label string) (Advice, bool) {
	a, ok := byLabel[label]
	if !ok {
		return Advice{}, false
	}
	a.Precautions = append([]string(nil), a.Precautions...)
	return a, true
}

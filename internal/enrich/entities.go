package enrich

import "strings"

// Domain vocabularies for entity extraction. Matching is
// case-insensitive on word boundaries within the scanned text.
var entityVocabulary = map[string][]string{
	"compounds": {
		"thc", "cbd", "cbg", "cbn", "cbc", "thcv", "cbda", "thca",
		"cannabidiol", "cannabinol", "cannabigerol", "tetrahydrocannabinol",
		"myrcene", "limonene", "linalool", "pinene", "caryophyllene",
		"terpinolene", "humulene", "terpene", "terpenes", "cannabinoid",
		"cannabinoids", "flavonoid", "flavonoids",
	},
	"methods": {
		"hplc", "gc-ms", "lc-ms", "chromatography", "spectroscopy",
		"spectrometry", "titration", "distillation", "winterization",
		"decarboxylation", "extraction", "encapsulation", "emulsification",
		"homogenization", "lyophilization", "sonication",
	},
	"dosage_forms": {
		"tincture", "capsule", "tablet", "gummy", "edible", "topical",
		"transdermal", "sublingual", "liposome", "liposomal",
		"nanoemulsion", "microemulsion", "suppository", "vaporizer",
		"inhaler", "patch", "syrup", "softgel",
	},
}

// ExtractEntities scans text for known domain terms and groups the
// hits by vocabulary. Categories with no hits are omitted.
func ExtractEntities(text string) map[string][]string {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,;:()[]{}\"'")] = struct{}{}
	}

	entities := make(map[string][]string)
	for category, vocab := range entityVocabulary {
		for _, term := range vocab {
			if _, ok := words[term]; ok {
				entities[category] = append(entities[category], term)
			}
		}
	}
	if len(entities) == 0 {
		return nil
	}
	return entities
}

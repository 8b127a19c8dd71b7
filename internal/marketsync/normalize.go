package marketsync

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultQuintalDivisor converts the feeds' per-quintal prices to per-kg.
const DefaultQuintalDivisor = 100.0

//go:embed aliases.yaml
var defaultAliasYAML []byte

// AliasTable maps feed spellings to canonical fish and harbor names.
type AliasTable struct {
	Fish    map[string]string `yaml:"fish"`
	Harbors map[string]string `yaml:"harbors"`
}

// LoadAliases reads an alias table from path, or the built-in table when
// path is empty.
func LoadAliases(path string) (*AliasTable, error) {
	data := defaultAliasYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "marketsync: read aliases %s", path)
		}
	}
	var table AliasTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, eris.Wrap(err, "marketsync: parse aliases")
	}
	return &table, nil
}

// Record is a normalized feed row ready to persist.
type Record struct {
	FishName   string
	Location   string
	PricePerKg float64
	Variety    string
}

// Normalizer converts raw feed rows into canonical records.
type Normalizer struct {
	aliases        *AliasTable
	quintalDivisor float64
	titleCaser     cases.Caser
}

// NewNormalizer creates a Normalizer. A non-positive divisor falls back to
// DefaultQuintalDivisor.
func NewNormalizer(aliases *AliasTable, quintalDivisor float64) *Normalizer {
	if quintalDivisor <= 0 {
		quintalDivisor = DefaultQuintalDivisor
	}
	return &Normalizer{
		aliases:        aliases,
		quintalDivisor: quintalDivisor,
		titleCaser:     cases.Title(language.English),
	}
}

// Normalize converts one raw row. It returns an error for rows missing a
// commodity name or any positive price; callers count and skip those.
func (n *Normalizer) Normalize(raw RawRecord) (*Record, error) {
	commodity := stringField(raw, "commodity")
	if commodity == "" {
		return nil, eris.New("marketsync: record has no commodity")
	}

	price, ok := n.pickPrice(raw)
	if !ok {
		return nil, eris.Errorf("marketsync: no usable price for %q", commodity)
	}

	location := stringField(raw, "market")
	if location == "" {
		location = stringField(raw, "district")
	}
	if location == "" {
		location = stringField(raw, "state")
	}

	return &Record{
		FishName:   n.canonicalFish(commodity),
		Location:   n.canonicalHarbor(location),
		PricePerKg: price / n.quintalDivisor,
		Variety:    stringField(raw, "variety"),
	}, nil
}

// pickPrice prefers the modal price, then max, then min.
func (n *Normalizer) pickPrice(raw RawRecord) (float64, bool) {
	for _, key := range []string{"modal_price", "max_price", "min_price"} {
		if v, ok := floatField(raw, key); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

func (n *Normalizer) canonicalFish(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := n.aliases.Fish[key]; ok {
		return canonical
	}
	return n.titleCaser.String(key)
}

func (n *Normalizer) canonicalHarbor(name string) string {
	if name == "" {
		return ""
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := n.aliases.Harbors[key]; ok {
		return canonical
	}
	return n.titleCaser.String(key)
}

// stringField reads a field trying the common key spellings the feeds use:
// lowercase, PascalCase, and uppercase.
func stringField(raw RawRecord, key string) string {
	for _, k := range keyVariants(key) {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// floatField reads a numeric field that may arrive as a JSON number or a
// numeric string.
func floatField(raw RawRecord, key string) (float64, bool) {
	for _, k := range keyVariants(key) {
		v, ok := raw[k]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return val, true
		case string:
			trimmed := strings.TrimSpace(val)
			if trimmed == "" || strings.EqualFold(trimmed, "NR") {
				continue
			}
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func keyVariants(key string) []string {
	// "modal_price" → "Modal_Price"; "commodity" → "Commodity".
	parts := strings.Split(key, "_")
	pascal := make([]string, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		pascal[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return []string{key, strings.Join(pascal, "_"), strings.ToUpper(key)}
}

package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Corrector rewrites common OCR confusions for one kind of field. Word
// corrections replace whole tokens only; pattern corrections run afterwards
// in declaration order.
type Corrector struct {
	Name     string
	words    map[string]string
	patterns []patternFix
}

type patternFix struct {
	re   *regexp.Regexp
	repl string
	fn   func(string) string // used instead of re when set
}

var reToken = regexp.MustCompile(`[a-z0-9]+`)

// Apply rewrites lowercase text.
func (c *Corrector) Apply(s string) string {
	if c == nil {
		return s
	}
	if len(c.words) > 0 {
		s = reToken.ReplaceAllStringFunc(s, func(tok string) string {
			if fixed, ok := c.words[tok]; ok {
				return fixed
			}
			return tok
		})
	}
	for _, p := range c.patterns {
		if p.fn != nil {
			s = p.fn(s)
			continue
		}
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// digitO reads the letter o as a zero inside numbers, so "5oo" becomes "500"
// and "4o%" becomes "40%". A single trailing o followed by a letter is left
// alone to keep "12oz" intact.
func digitO(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); {
		if !isDigit(b[i]) {
			i++
			continue
		}
		j := i
		for j < len(b) && (isDigit(b[j]) || b[j] == 'o' || b[j] == '.') {
			j++
		}
		end := j
		if end < len(b) && b[end] >= 'a' && b[end] <= 'z' {
			k := end
			for k > i && b[k-1] == 'o' {
				k--
			}
			if end-k == 1 {
				end = k
			}
		}
		for k := i; k < end; k++ {
			if b[k] == 'o' {
				b[k] = '0'
			}
		}
		i = j
	}
	return string(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func newCorrector(name string, groups [][2][]string, patterns ...patternFix) *Corrector {
	c := &Corrector{Name: name, words: map[string]string{}, patterns: patterns}
	for _, g := range groups {
		right := g[0][0]
		for _, wrong := range g[1] {
			c.words[wrong] = right
		}
	}
	return c
}

// fix pairs a correct spelling with the misreadings that map to it.
func fix(right string, wrong ...string) [2][]string {
	return [2][]string{{right}, wrong}
}

// rnToM adds the "rn" read-as-"m" misreading for each word.
func rnToM(words ...string) [][2][]string {
	out := make([][2][]string, 0, len(words))
	for _, w := range words {
		out = append(out, fix(w, strings.ReplaceAll(w, "m", "rn")))
	}
	return out
}

var brandCorrections = newCorrector("brand", append([][2][]string{
	fix("michelob", "mihelob", "maheleb", "mabeleb", "maheiob", "mahclob", "mlchelob", "m1chelob", "miche1ob",
		"mictieleb", "micheleb", "micheiob", "michelab", "mlcheleb", "micheloh", "michclob", "micheieb", "miehelob", "micheob"),
	fix("ultra", "uttra", "u1tra", "uitra", "ultr4", "uiltra", "uitr4", "ulira"),
	fix("budweiser", "budwelser", "budwe1ser", "budwiser", "budwieser", "budwelsr", "budweisar", "budwaser", "budw3iser"),
	fix("coors", "c00rs", "co0rs", "coor5", "cooors"),
	fix("miller", "mi11er", "miiler", "m1ller", "mlller"),
	fix("corona", "c0rona", "cor0na", "carona", "corono"),
	fix("heineken", "helneken", "he1neken", "hieneken", "heiniken", "heinekn", "hienken"),
	fix("stella", "ste11a", "stelia", "steila"),
	fix("artois", "art0is", "artols", "artios"),
	fix("modelo", "mode1o", "m0delo"),
	fix("guinness", "gulnness", "gu1nness", "guiness", "guinnes", "guinnss", "guinn3ss"),
	fix("samuel", "samue1", "sarnuel", "samuei"),
	fix("pabst", "pabsi", "pa8st", "p4bst"),
	fix("blue", "b1ue", "biue"),
	fix("ribbon", "rlbbon", "r1bbon", "ribben"),
	fix("light", "1ight", "ilght", "lighi", "l1ght"),
	fix("sierra", "slerra", "s1erra", "siarra", "sterra"),
	fix("nevada", "nevad0", "n3vada"),
	fix("barefoot", "baref00t", "barefool", "barefot"),
	fix("yellow", "ye11ow", "yeilow", "yel1ow"),
	fix("mondavi", "m0ndavi", "mondav1", "mondavl"),
	fix("beringer", "ber1nger", "beringr", "beringar"),
	fix("gallo", "ga11o", "galio", "gall0"),
	fix("cellars", "ce11ars", "cellar5", "cellrs"),
	fix("silver", "si1ver", "s1lver"),
	fix("oak", "0ak", "oa1k"),
	fix("daniels", "danie1s", "danlels", "danielss", "dani3ls"),
	fix("walker", "wa1ker", "walkar"),
	fix("crown", "cr0wn", "crwn", "crawn"),
	fix("royal", "roya1", "royai", "rayal"),
	fix("jameson", "james0n", "jarneson"),
	fix("hennessy", "henness1", "hennessey", "henesy", "hennssy", "hennesey"),
	fix("goose", "g00se", "go0se"),
	fix("absolut", "abso1ut", "absolui", "absalut"),
	fix("smirnoff", "smlrnoff", "sm1rnoff", "smirnof", "smirn0ff"),
	fix("patron", "patr0n", "pairon", "patrn"),
	fix("captain", "capta1n", "captian", "captln"),
	fix("bacardi", "bacardl", "bacard1", "barcadi"),
	fix("anheuser", "anhueser", "anheusur", "anheuer"),
	fix("busch", "busck", "bu5ch"),
	fix("diageo", "diage0", "d1ageo", "diagao"),
	fix("constellation", "conste11ation", "constelation"),
	fix("brewing", "brew1ng", "brewlng"),
	fix("winery", "w1nery", "wlnery"),
	fix("distillery", "disti11ery", "distlllery", "distiilery"),
}, rnToM("michelob", "miller", "beam", "jameson", "morgan", "malibu", "modelo", "premium", "malt", "forman")...))

var typeCorrections = newCorrector("type",
	[][2][]string{
		fix("lager", "1ager", "iager", "lag3r", "lagr"),
		fix("pilsner", "pi1sner", "pilsnar", "plisner"),
		fix("ale", "a1e", "aie"),
		fix("ipa", "1pa", "lpa"),
		fix("stout", "st0ut", "siout", "stoui"),
		fix("porter", "p0rter", "portr", "porier"),
		fix("wheat", "wh3at", "wheal"),
		fix("cabernet", "cabern3t", "cabernei", "cabarnet", "cabernett"),
		fix("sauvignon", "sauvlgnon", "sauvign0n", "sauvignan", "sauv1gnon"),
		fix("chardonnay", "chardonn4y", "chardannay", "chardonay", "chardonnav"),
		fix("pinot", "pin0t", "plnot", "pnot"),
		fix("noir", "n0ir", "nolr"),
		fix("grigio", "grig1o", "grlgio", "grigl0"),
		fix("merlot", "merl0t", "merloi", "meriot"),
		fix("riesling", "r1esling", "riesiing", "riesllng"),
		fix("zinfandel", "z1nfandel", "zinfande1", "zlnfandel"),
		fix("malbec", "ma1bec", "malbac", "maibec"),
		fix("bourbon", "bourb0n", "bourban", "bourbn"),
		fix("whiskey", "wh1skey", "whlskey", "whisk3y"),
		fix("whisky", "wh1sky", "whlsky"),
		fix("vodka", "v0dka", "vodko", "vdka"),
		fix("tequila", "tequ1la", "tequlia", "teqila"),
		fix("rum", "rurn"),
		fix("gin", "g1n", "gln"),
		fix("brandy", "br4ndy", "brandv"),
		fix("cognac", "c0gnac", "cagnac", "cognc"),
		fix("single", "sing1e", "slngle"),
		fix("barrel", "barre1", "barr3l"),
		fix("straight", "stra1ght", "stralght"),
		fix("organic", "organ1c", "organlc"),
	})

var volumeCorrections = newCorrector("volume",
	[][2][]string{
		fix("fl", "f1", "fi"),
		fix("oz", "0z"),
		fix("ml", "m1", "mi", "rnl"),
		fix("liter", "1iter", "llter", "l1ter", "litre"),
		fix("liters", "litres"),
		fix("pint", "p1nt", "plnt"),
	},
	// "o2", "02", "07" read for "oz", only after a number or "fl"
	patternFix{re: regexp.MustCompile(`(\d|\bfl\.?)\s*(?:o2|o7)\b`), repl: "${1} oz"},
	patternFix{re: regexp.MustCompile(`(\d|\bfl\.?)\s+(?:02|07)\b`), repl: "${1} oz"},
	patternFix{fn: digitO},
	// units run into the number: "750m1", "12f1 oz", "1p1nt"
	patternFix{re: regexp.MustCompile(`(\d)\s*(?:m1|mi|rnl|rn1)\b`), repl: "${1} ml"},
	patternFix{re: regexp.MustCompile(`(\d)\s*(?:f1|fi)\b`), repl: "${1} fl"},
	patternFix{re: regexp.MustCompile(`(\d)\s*(?:p1nt|plnt)(s?)\b`), repl: "${1} pint${2}"},
)

var alcoholCorrections = newCorrector("alcohol",
	[][2][]string{
		fix("alc", "a1c", "aic", "alcc", "alg"),
		fix("vol", "vo1", "voi", "v0l", "voll"),
		fix("abv", "a8v", "abvv"),
		fix("proof", "pr00f", "prooof", "pro0f"),
	},
	patternFix{fn: digitO},
	patternFix{re: regexp.MustCompile(`\balc\.?\s*/?\s*dl\b`), repl: "alc/vol"},
	// "12.5 o/o" and "12.5 °/o" for a percent sign
	patternFix{re: regexp.MustCompile(`(\d)\s*[°o0]/o\b`), repl: "${1}%"},
)

var correctors = map[string]*Corrector{
	brandCorrections.Name:   brandCorrections,
	typeCorrections.Name:    typeCorrections,
	volumeCorrections.Name:  volumeCorrections,
	alcoholCorrections.Name: alcoholCorrections,
}

// LookupCorrector returns the named correction set. "" and "none" yield nil.
func LookupCorrector(name string) (*Corrector, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return nil, nil
	}
	c, ok := correctors[name]
	if !ok {
		return nil, fmt.Errorf("unknown correction set %q (known: %s)", name, strings.Join(CorrectorNames(), ", "))
	}
	return c, nil
}

// CorrectorNames lists the built-in correction sets.
func CorrectorNames() []string {
	out := make([]string, 0, len(correctors))
	for n := range correctors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

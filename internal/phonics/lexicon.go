package phonics

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// natoAlphabet maps NATO phonetic alphabet words to the letter they stand for.
// Children who practice competitive spelling sometimes use these, and speech
// recognizers transcribe them reliably.
var natoAlphabet = map[string]string{
	"alpha": "a", "bravo": "b", "charlie": "c", "delta": "d", "echo": "e",
	"foxtrot": "f", "golf": "g", "hotel": "h", "india": "i", "juliet": "j",
	"kilo": "k", "lima": "l", "mike": "m", "november": "n", "oscar": "o",
	"papa": "p", "quebec": "q", "romeo": "r", "sierra": "s", "tango": "t",
	"uniform": "u", "victor": "v", "whiskey": "w", "xray": "x", "x-ray": "x",
	"yankee": "y", "zulu": "z",
}

// letterHomophones maps common recognizer outputs for a spoken letter back to
// that letter. Speech recognition almost never emits bare letter sounds; it
// picks the closest English word ("bee", "are", "why").
var letterHomophones = map[string]string{
	"ay": "a", "a": "a", "aye": "a", "hey": "a",
	"bee": "b", "be": "b", "b": "b",
	"cee": "c", "see": "c", "sea": "c", "c": "c",
	"dee": "d", "d": "d",
	"ee": "e", "e": "e", "he": "e",
	"ef": "f", "eff": "f", "f": "f",
	"gee": "g", "g": "g", "ji": "g",
	"aitch": "h", "h": "h", "age": "h", "each": "h", "ach": "h",
	"i": "i", "eye": "i",
	"jay": "j", "j": "j",
	"kay": "k", "k": "k", "okay": "k",
	"el": "l", "l": "l", "ell": "l", "elle": "l",
	"em": "m", "m": "m",
	"en": "n", "n": "n", "and": "n", "end": "n",
	"oh": "o", "o": "o", "owe": "o", "ow": "o",
	"pee": "p", "p": "p", "pea": "p",
	"cue": "q", "queue": "q", "q": "q", "kew": "q",
	"are": "r", "r": "r", "our": "r", "ar": "r",
	"ess": "s", "s": "s", "es": "s",
	"tee": "t", "t": "t", "tea": "t",
	"you": "u", "u": "u", "yew": "u",
	"vee": "v", "v": "v", "ve": "v",
	"doubleyou": "w", "double-u": "w", "doubleu": "w", "w": "w",
	"ex": "x", "x": "x",
	"why": "y", "y": "y", "wye": "y",
	"zee": "z", "zed": "z", "z": "z",
}

// Lookup maps a single spoken token to the letter it most likely stands for.
// It checks the NATO alphabet first, then the homophone catalogue.
func Lookup(token string) (string, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if letter, ok := natoAlphabet[token]; ok {
		return letter, true
	}
	if letter, ok := letterHomophones[token]; ok {
		return letter, true
	}
	return "", false
}

// IsLetterLike reports whether a token plausibly encodes a single letter:
// either a known lexicon entry or a short token the recognizer may have
// mangled. Used by the intent heuristics to tell spelling from chatter.
func IsLetterLike(token string) bool {
	if _, ok := Lookup(token); ok {
		return true
	}
	return len(token) <= 3
}

const fuzzyLookupThreshold = 0.88

// FuzzyLookup maps a token to a letter by phonetic similarity against the
// homophone catalogue: Double Metaphone candidate filtering followed by
// Jaro-Winkler ranking. It only accepts high-confidence matches so that real
// words spoken mid-sentence do not collapse into letters.
func FuzzyLookup(token string) (string, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", false
	}
	tokenPrimary, tokenSecondary := matchr.DoubleMetaphone(token)

	bestScore := 0.0
	bestLetter := ""
	for key, letter := range letterHomophones {
		if len(key) < 2 {
			continue
		}
		keyPrimary, keySecondary := matchr.DoubleMetaphone(key)
		if !metaphoneOverlap(tokenPrimary, tokenSecondary, keyPrimary, keySecondary) {
			continue
		}
		score := matchr.JaroWinkler(token, key, true)
		if score > bestScore {
			bestScore = score
			bestLetter = letter
		}
	}
	if bestScore >= fuzzyLookupThreshold {
		return bestLetter, true
	}
	return "", false
}

func metaphoneOverlap(aPrimary, aSecondary, bPrimary, bSecondary string) bool {
	for _, a := range []string{aPrimary, aSecondary} {
		if a == "" {
			continue
		}
		if a == bPrimary || (bSecondary != "" && a == bSecondary) {
			return true
		}
	}
	return false
}

package benchmark

import "math/rand/v2"

// Vocabulary is the fixed set of Dutch cultural terms a benchmark draws its
// queries from.
var Vocabulary = []string{
	"cultuur",
	"bibliotheek",
	"literatuur",
	"boeken",
	"poëzie",
	"lezing",
	"workshop",
	"cursus",
	"erfgoed",
	"tentoonstelling",
	"archief",
	"kunst",
	"theater",
	"dans",
	"ballet",
	"opera",
	"cabaret",
	"musical",
	"toneel",
	"performance",
	"concert",
	"festival",
	"muziek",
	"koor",
	"jazz",
	"klassiek",
	"pop",
	"rock",
	"dj",
	"party",
	"feest",
	"museum",
	"galerie",
	"expositie",
	"beeldhouwwerk",
	"schilderij",
	"fotografie",
	"film",
	"cinema",
	"kindervoorstelling",
	"jeugdtheater",
	"familieactiviteit",
	"speelplein",
	"circus",
	"kinderboeken",
	"poppenkast",
	"intercultureel",
	"migratie",
	"inclusie",
	"geschiedenis",
	"debat",
	"cultuurcentrum",
	"schouwburg",
	"zaal",
	"kerk",
	"plein",
	"park",
}

// pick returns a uniformly chosen vocabulary word.
func pick(r *rand.Rand) string {
	return Vocabulary[r.IntN(len(Vocabulary))]
}

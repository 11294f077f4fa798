package genre

// aliases maps common spellings (as slugs) onto the canonical genre.
var aliases = map[string]Genre{
	"classic":          Classical,
	"classical-music":  Classical,
	"orchestral":       Classical,
	"baroque":          Classical,
	"rock-and-roll":    Rock,
	"rock-n-roll":      Rock,
	"alternative-rock": Rock,
	"pop-music":        Pop,
	"hip-hop":          Rap,
	"hiphop":           Rap,
	"rap-hip-hop":      Rap,
	"rnb":              RnB,
	"r-and-b":          RnB,
	"r-n-b":            RnB,
	"rhythm-and-blues": RnB,
	"rhythm-blues":     RnB,
}

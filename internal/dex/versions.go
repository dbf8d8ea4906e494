package dex

// Versions is every main-series release in chronological order. It is the
// sort key for flavor texts; extend it when a new release ships.
var Versions = []string{
	"red",
	"blue",
	"yellow",
	"gold",
	"silver",
	"crystal",
	"ruby",
	"sapphire",
	"emerald",
	"firered",
	"leafgreen",
	"diamond",
	"pearl",
	"platinum",
	"heartgold",
	"soulsilver",
	"black",
	"white",
	"black-2",
	"white-2",
	"x",
	"y",
	"omega-ruby",
	"alpha-sapphire",
	"sun",
	"moon",
	"ultra-sun",
	"ultra-moon",
	"lets-go-pikachu",
	"lets-go-eevee",
	"sword",
	"shield",
	"brilliant-diamond",
	"shining-pearl",
	"legends-arceus",
	"scarlet",
	"violet",
}

var versionIndex = func() map[string]int {
	m := make(map[string]int, len(Versions))
	for i, v := range Versions {
		m[v] = i
	}
	return m
}()

// VersionPosition returns the chronological position of version, or -1.
func VersionPosition(version string) int {
	if i, ok := versionIndex[version]; ok {
		return i
	}
	return -1
}

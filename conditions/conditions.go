// Package conditions maps provider condition labels to the images the screens show.
package conditions

import (
	"sort"
	"strings"
)

// Image names a bundled weather illustration, without the file extension
type Image string

const (
	Cloud        Image = "cloud"
	Sun          Image = "sun"
	ModerateRain Image = "moderaterain"
	HeavyRain    Image = "heavyrain"
	Mist         Image = "mist"
)

// Other is the catch-all label
const Other = "other"

// Default is the image for labels outside the table
const Default = ModerateRain

var images = map[string]Image{
	"Partly Cloudy":                    Cloud,
	"Moderate rain":                    ModerateRain,
	"Patchy light rain with thunder":   ModerateRain,
	"Moderate or heavy rain shower":    ModerateRain,
	"Light rain shower":                ModerateRain,
	"Rainfall Possible":                ModerateRain,
	"Sunny":                            Sun,
	"Clear":                            Sun,
	"Overcast":                         Cloud,
	"Cloudy":                           Cloud,
	"Light rain":                       ModerateRain,
	"Patchy rain nearby":               ModerateRain,
	"Patchy rain possible":             ModerateRain,
	"Patchy snow possible":             Cloud,
	"Patchy sleet possible":            Cloud,
	"Patchy freezing drizzle possible": Cloud,
	"Thundery outbreaks possible":      ModerateRain,
	"Blowing snow":                     Cloud,
	"Blizzard":                         Cloud,
	"Fog":                              Mist,
	"Freezing fog":                     Mist,
	"Patchy light drizzle":             ModerateRain,
	"Light drizzle":                    ModerateRain,
	"Freezing drizzle":                 ModerateRain,
	"Heavy freezing drizzle":           ModerateRain,
	"Patchy light rain":                ModerateRain,
	"Moderate rain at times":           ModerateRain,
	"Heavy rain at times":              HeavyRain,
	"Light freezing rain":              ModerateRain,
	"Moderate or heavy freezing rain":  HeavyRain,
	"Light sleet":                      ModerateRain,
	"Patchy light snow":                Cloud,
	"Light snow":                       Cloud,
	"Heavy Rain":                       HeavyRain,
	"Moderate Rain shower":             ModerateRain,
	"Moderate Rain with thunder":       ModerateRain,
	"Mist":                             Mist,
	Other:                              Default,
}

// folded indexes the table by lower-cased label
var folded = func() map[string]Image {
	m := make(map[string]Image, len(images))
	for label, img := range images {
		m[strings.ToLower(label)] = img
	}
	return m
}()

// ImageFor returns the image for a condition label. The provider is not
// consistent about capitalisation or trailing spaces, so an exact miss is
// retried case-insensitively; anything still unknown gets Default.
func ImageFor(label string) Image {
	if img, ok := images[label]; ok {
		return img
	}
	if img, ok := folded[strings.ToLower(strings.TrimSpace(label))]; ok {
		return img
	}
	return Default
}

// Known reports whether label is in the table, ignoring case and surrounding space
func Known(label string) bool {
	_, ok := folded[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// Labels returns the closed set of labels, sorted
func Labels() []string {
	labels := make([]string, 0, len(images))
	for label := range images {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Package sources loads the world map and the location dataset from files or URLs.
package sources

import (
	"bytes"
	"cmp"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/biter777/countries"
	"github.com/cloudflare/ahocorasick"

	"github.com/sudorandom/globe-paths/pkg/geo"
	"github.com/sudorandom/globe-paths/pkg/utils"
)

var ErrNoLocations = errors.New("no usable locations")

// Header aliases accepted in CSV datasets, first match wins.
var (
	cityColumns    = []string{"city", "name", "city_ascii"}
	regionColumns  = []string{"region", "state_name", "admin_name"}
	countryColumns = []string{"country", "country_name"}
	codeColumns    = []string{"country_code", "iso2", "iso3"}
	latColumns     = []string{"lat", "latitude"}
	longColumns    = []string{"long", "lng", "longitude"}
	popColumns     = []string{"population"}
)

// CountryName turns an ISO code into a display name. Anything the countries
// package does not recognise is returned unchanged.
func CountryName(code string) string {
	name := countries.ByName(code).String()
	if name == "Unknown" {
		return code
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}

func normalizeCountry(country string) string {
	if n := len(country); n == 2 || n == 3 {
		return CountryName(strings.ToUpper(country))
	}
	return country
}

// DecodeLocationsJSON reads an array of location objects.
func DecodeLocationsJSON(r io.Reader) ([]geo.GeoLocation, error) {
	var locs []geo.GeoLocation
	if err := json.NewDecoder(r).Decode(&locs); err != nil {
		return nil, fmt.Errorf("decoding locations: %w", err)
	}
	for i := range locs {
		locs[i].Country = normalizeCountry(locs[i].Country)
	}
	return locs, nil
}

// DecodeLocationsCSV reads a city table with a header row. Rows without a city or
// with unparsable coordinates are skipped.
func DecodeLocationsCSV(r io.Reader) ([]geo.GeoLocation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	find := func(names []string) int {
		for _, n := range names {
			if i, ok := cols[n]; ok {
				return i
			}
		}
		return -1
	}
	cityCol, regionCol := find(cityColumns), find(regionColumns)
	countryCol, codeCol := find(countryColumns), find(codeColumns)
	latCol, longCol, popCol := find(latColumns), find(longColumns), find(popColumns)
	if cityCol < 0 || latCol < 0 || longCol < 0 {
		return nil, fmt.Errorf("missing city or coordinate columns in %v", header)
	}

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var locs []geo.GeoLocation
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		lat, latErr := strconv.ParseFloat(field(rec, latCol), 64)
		long, longErr := strconv.ParseFloat(field(rec, longCol), 64)
		city := field(rec, cityCol)
		if latErr != nil || longErr != nil || city == "" {
			skipped++
			continue
		}
		country := field(rec, countryCol)
		if country == "" {
			country = CountryName(strings.ToUpper(field(rec, codeCol)))
		}
		pop, _ := strconv.ParseFloat(field(rec, popCol), 64)
		locs = append(locs, geo.GeoLocation{
			Country:    country,
			Region:     field(rec, regionCol),
			City:       city,
			Lat:        lat,
			Long:       long,
			Population: int(pop),
		})
	}
	if skipped > 0 {
		log.Printf("[ASSETS] Skipped %d unusable location rows", skipped)
	}
	return locs, nil
}

// FilterLocations keeps locations whose city, region or country contains any of
// the keywords, case-insensitively. No keywords keeps everything.
func FilterLocations(locs []geo.GeoLocation, keywords []string) []geo.GeoLocation {
	var dict []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			dict = append(dict, strings.ToLower(k))
		}
	}
	if len(dict) == 0 {
		return locs
	}
	m := ahocorasick.NewStringMatcher(dict)
	out := make([]geo.GeoLocation, 0, len(locs))
	for _, l := range locs {
		hay := strings.ToLower(l.City + "\x00" + l.Region + "\x00" + l.Country)
		if len(m.Match([]byte(hay))) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// TopByPopulation keeps at most n locations, largest first. Ties keep dataset order.
func TopByPopulation(locs []geo.GeoLocation, n int) []geo.GeoLocation {
	if n <= 0 || len(locs) <= n {
		return locs
	}
	out := slices.Clone(locs)
	slices.SortStableFunc(out, func(a, b geo.GeoLocation) int {
		return cmp.Compare(b.Population, a.Population)
	})
	return out[:n]
}

// LocationLoader reads the location dataset from a file or URL. It implements
// globe.LocationSource.
type LocationLoader struct {
	Source   string
	Store    *utils.AssetStore
	Keywords []string
	Limit    int
}

func (l *LocationLoader) LoadLocations(ctx context.Context) ([]geo.GeoLocation, error) {
	data, err := utils.ReadSource(ctx, l.Source, l.Store, "[ASSETS]")
	if err != nil {
		return nil, fmt.Errorf("loading locations from %s: %w", l.Source, err)
	}

	var locs []geo.GeoLocation
	switch strings.ToLower(path.Ext(strings.SplitN(l.Source, "?", 2)[0])) {
	case ".csv":
		locs, err = DecodeLocationsCSV(bytes.NewReader(data))
	default:
		locs, err = DecodeLocationsJSON(bytes.NewReader(data))
	}
	if err != nil {
		evict(l.Source, l.Store)
		return nil, err
	}

	total := len(locs)
	locs = TopByPopulation(FilterLocations(locs, l.Keywords), l.Limit)
	if len(locs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoLocations, l.Source)
	}
	log.Printf("[ASSETS] Loaded %d of %d locations from %s", len(locs), total, l.Source)
	return locs, nil
}

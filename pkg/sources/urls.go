package sources

const (
	// NaturalEarthLandURL is a low resolution land polygon collection.
	NaturalEarthLandURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_land.geojson"

	WorldCitiesURL = "https://raw.githubusercontent.com/dr5hn/countries-states-cities-database/master/csv/cities.csv"
)

package sources

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/sudorandom/globe-paths/pkg/geo"
	"github.com/sudorandom/globe-paths/pkg/utils"
)

// DefaultMaskWidth is the raster width GeoJSON maps are drawn at.
const DefaultMaskWidth = 720

// MapLoader reads the world map from a PNG or GeoJSON file or URL. It implements
// globe.MapSource.
type MapLoader struct {
	Source string
	Store  *utils.AssetStore
	// MaxWidth caps the mask width. PNGs wider than this are downscaled and GeoJSON
	// is rasterised at this width. Zero keeps PNGs as they are and uses DefaultMaskWidth.
	MaxWidth int
}

func (m *MapLoader) LoadMap(ctx context.Context) (*geo.MapMask, error) {
	data, err := utils.ReadSource(ctx, m.Source, m.Store, "[ASSETS]")
	if err != nil {
		return nil, fmt.Errorf("loading map from %s: %w", m.Source, err)
	}

	var mask *geo.MapMask
	if isGeoJSON(m.Source, data) {
		w := m.MaxWidth
		if w <= 0 {
			w = DefaultMaskWidth
		}
		mask, err = geo.MaskFromGeoJSON(data, w, w/2)
	} else {
		mask, err = geo.DecodeMask(bytes.NewReader(data), m.MaxWidth)
	}
	if err != nil {
		evict(m.Source, m.Store)
		return nil, err
	}
	log.Printf("[ASSETS] Loaded %dx%d map mask from %s", mask.Width, mask.Height, m.Source)
	return mask, nil
}

// evict drops a cached asset that failed to decode so a restart downloads it again.
func evict(source string, store *utils.AssetStore) {
	if err := utils.EvictCached(source, store, "[ASSETS]"); err != nil {
		log.Printf("[ASSETS] Failed to evict %s: %v", source, err)
	}
}

func isGeoJSON(source string, data []byte) bool {
	switch strings.ToLower(path.Ext(strings.SplitN(source, "?", 2)[0])) {
	case ".geojson", ".json":
		return true
	case ".png":
		return false
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
}

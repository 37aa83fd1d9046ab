package restserver

import (
	"net/http"
	"sort"
	"time"

	driver "github.com/chrissnell/observerip/internal/observerip"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/gorilla/mux"
)

// LatestReading is the /latest response for one station.
type LatestReading struct {
	Reading types.Reading `json:"reading"`
	// DayRain is the rain archived since local midnight, when an archive
	// is configured.
	DayRain *float64 `json:"day_rain,omitempty"`
}

// infoSource is implemented by stations that probe their device.
type infoSource interface {
	Info() (*driver.Info, error)
}

// GetLatest returns the newest reading of one station, or of every station
// when none is named.
func (c *Controller) GetLatest(w http.ResponseWriter, req *http.Request) {
	station := mux.Vars(req)["station"]
	if station == "" {
		station = req.URL.Query().Get("station")
	}

	if station == "" {
		c.mu.RLock()
		all := make([]types.Reading, 0, len(c.latest))
		for _, r := range c.latest {
			all = append(all, r)
		}
		c.mu.RUnlock()
		sort.Slice(all, func(i, j int) bool { return all[i].StationName < all[j].StationName })
		c.formatter.WriteResponse(w, req, http.StatusOK, all)
		return
	}

	c.mu.RLock()
	r, ok := c.latest[station]
	c.mu.RUnlock()

	if !ok && c.archive != nil {
		archived, err := c.archive.Latest(req.Context(), station)
		if err != nil {
			c.logger.Errorf("error fetching latest reading for %s: %v", station, err)
			c.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching weather data")
			return
		}
		if archived != nil {
			r, ok = *archived, true
		}
	}
	if !ok {
		c.formatter.WriteError(w, req, http.StatusNotFound, "no weather data available for this station")
		return
	}

	resp := LatestReading{Reading: r}
	if c.archive != nil {
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if rain, err := c.archive.RainSince(req.Context(), station, midnight); err != nil {
			c.logger.Warnf("could not total today's rain for %s: %v", station, err)
		} else {
			resp.DayRain = &rain
		}
	}
	c.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// GetStation returns the network identity the named station's device
// reported when probed.
func (c *Controller) GetStation(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["station"]

	var station any
	if c.stations != nil {
		if s := c.stations.GetStation(name); s != nil {
			station = s
		}
	}
	if station == nil {
		c.formatter.WriteError(w, req, http.StatusNotFound, "station not found")
		return
	}

	src, ok := station.(infoSource)
	if !ok {
		c.formatter.WriteError(w, req, http.StatusNotFound, "station has no device information")
		return
	}
	info, err := src.Info()
	if err != nil {
		c.formatter.WriteError(w, req, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.formatter.WriteResponse(w, req, http.StatusOK, info)
}

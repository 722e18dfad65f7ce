// Package vars publishes per-service statistics under a single top level
// expvar map so they can be scraped from one place.
package vars

import (
	"expvar"
	"time"

	"github.com/google/uuid"
)

const (
	// List of names for top-level exported vars
	HostVarName    = "host"
	VersionVarName = "version"

	UptimeVarName = "uptime"

	// The name of the product
	Product = "logtap"
)

var (
	// Global expvars
	HostVar    = new(expvar.String)
	VersionVar = new(expvar.String)

	// All internal stats are added as sub-maps to this top level map.
	stats *expvar.Map

	startTime time.Time
)

func init() {
	startTime = time.Now().UTC()

	expvar.Publish(HostVarName, HostVar)
	expvar.Publish(VersionVarName, VersionVar)

	stats = new(expvar.Map).Init()
	expvar.Publish(Product, stats)
}

func Uptime() time.Duration {
	return time.Since(startTime)
}

// NewStatistic creates a new statistic in the published expvar map and
// returns its key along with the values map services add counters to.
func NewStatistic(name string, tags map[string]string) (string, *expvar.Map) {
	key := uuid.New().String()

	m := new(expvar.Map).Init()

	nameVar := new(expvar.String)
	nameVar.Set(name)
	m.Set("name", nameVar)

	tagsVar := new(expvar.Map).Init()
	for k, v := range tags {
		value := new(expvar.String)
		value.Set(v)
		tagsVar.Set(k, value)
	}
	tagsVar.Set(HostVarName, HostVar)
	m.Set("tags", tagsVar)

	statMap := new(expvar.Map).Init()
	m.Set("values", statMap)

	stats.Set(key, m)

	return key, statMap
}

// DeleteStatistic removes the specified statistic from the published map.
func DeleteStatistic(key string) {
	stats.Delete(key)
}

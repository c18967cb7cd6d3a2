package zones

import (
	"fmt"
	"iter"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// Snapshot is an immutable, versioned view of the zone configuration.
// One snapshot is used for a whole frame so a reload never mixes two
// configurations inside a single frame's decisions.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time
	zones    []models.Zone
	byID     map[string]int
}

func newSnapshot(version uint64, zones []models.Zone) *Snapshot {
	byID := make(map[string]int, len(zones))
	for i, z := range zones {
		byID[z.ID] = i
	}
	return &Snapshot{
		Version:  version,
		LoadedAt: time.Now(),
		zones:    zones,
		byID:     byID,
	}
}

// Len returns the number of configured zones, active or not
func (s *Snapshot) Len() int {
	return len(s.zones)
}

// Zones returns a copy of all configured zones in load order
func (s *Snapshot) Zones() []models.Zone {
	out := make([]models.Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Zone looks up a zone by id
func (s *Snapshot) Zone(id string) (models.Zone, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Zone{}, false
	}
	return s.zones[i], true
}

// ActiveZones yields the zones active at t in load order.
// Activity is evaluated while iterating, so the sequence may be ranged over
// repeatedly and always reflects the schedule at t.
func (s *Snapshot) ActiveZones(at time.Time) iter.Seq[models.Zone] {
	return func(yield func(models.Zone) bool) {
		for _, z := range s.zones {
			if !z.ActiveAt(at) {
				continue
			}
			if !yield(z) {
				return
			}
		}
	}
}

// IsActive reports whether the zone exists and is active at t
func (s *Snapshot) IsActive(id string, at time.Time) bool {
	z, ok := s.Zone(id)
	return ok && z.ActiveAt(at)
}

// Registry holds the monitored zones.
// Writers (load, toggle) are serialized; readers take lock-free snapshots.
type Registry struct {
	mu       sync.Mutex
	current  atomic.Pointer[Snapshot]
	validate *validator.Validate
}

// NewRegistry creates an empty registry (version 0, no zones)
func NewRegistry() *Registry {
	r := &Registry{validate: validator.New(validator.WithRequiredStructEnabled())}
	r.current.Store(newSnapshot(0, nil))
	return r
}

// Snapshot returns the current configuration snapshot
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// ActiveZones yields the zones active now, read from the current snapshot at call time
func (r *Registry) ActiveZones() iter.Seq[models.Zone] {
	return r.Snapshot().ActiveZones(time.Now())
}

// Load validates and installs a new zone set. On any violation it returns a
// wrapped *models.ConfigError and the previous configuration is kept.
func (r *Registry) Load(defs []models.ZoneDefinition) error {
	zones := make([]models.Zone, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for i, def := range defs {
		z, err := r.buildZone(def)
		if err != nil {
			return errors.Wrapf(err, "zone #%d", i)
		}
		if _, dup := seen[z.ID]; dup {
			return errors.WithStack(&models.ConfigError{ZoneID: z.ID, Field: "id", Reason: "duplicate zone id"})
		}
		seen[z.ID] = struct{}{}
		zones = append(zones, z)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := newSnapshot(r.current.Load().Version+1, zones)
	r.current.Store(next)

	log.Info().
		Uint64("version", next.Version).
		Int("zones", len(zones)).
		Msg("Zone configuration loaded")
	return nil
}

// SetActive toggles a zone's active flag, producing a new snapshot version
func (r *Registry) SetActive(zoneID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	idx, ok := cur.byID[zoneID]
	if !ok {
		return fmt.Errorf("zone %q not found", zoneID)
	}
	zones := cur.Zones()
	zones[idx].Active = active
	next := newSnapshot(cur.Version+1, zones)
	r.current.Store(next)

	log.Info().
		Str("zone_id", zoneID).
		Bool("active", active).
		Uint64("version", next.Version).
		Msg("Zone activity changed")
	return nil
}

func (r *Registry) buildZone(def models.ZoneDefinition) (models.Zone, error) {
	if err := r.validate.Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.Zone{}, &models.ConfigError{
				ZoneID: def.ID,
				Field:  strings.ToLower(fe.Field()),
				Reason: fmt.Sprintf("failed %q validation", fe.Tag()),
			}
		}
		return models.Zone{}, &models.ConfigError{ZoneID: def.ID, Field: "zone", Reason: err.Error()}
	}

	poly := make([]models.Point, len(def.Polygon))
	for i, p := range def.Polygon {
		if !finite(p[0]) || !finite(p[1]) {
			return models.Zone{}, &models.ConfigError{
				ZoneID: def.ID,
				Field:  "polygon",
				Reason: fmt.Sprintf("point %d has a non-finite coordinate", i),
			}
		}
		poly[i] = models.Point{X: p[0], Y: p[1]}
	}
	if collinear(poly) {
		return models.Zone{}, &models.ConfigError{ZoneID: def.ID, Field: "polygon", Reason: "points are collinear"}
	}

	schedule := make([]models.DailyWindow, 0, len(def.Schedule))
	for _, w := range def.Schedule {
		dw, err := models.ParseWindow(w)
		if err != nil {
			return models.Zone{}, &models.ConfigError{ZoneID: def.ID, Field: "schedule", Reason: err.Error()}
		}
		schedule = append(schedule, dw)
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}
	active := true
	if def.Active != nil {
		active = *def.Active
	}

	return models.Zone{
		ID:          def.ID,
		Name:        name,
		Polygon:     poly,
		Active:      active,
		Sensitivity: def.Sensitivity,
		Cooldown:    def.Cooldown,
		Schedule:    schedule,
	}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

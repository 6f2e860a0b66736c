package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/hospital-availability/internal/models"
)

// RedisGeo implements Index using Redis GEO commands, with per-ambulance
// metadata kept in a hash next to the sorted set.
type RedisGeo struct {
	client *redis.Client
	key    string
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key}
}

func (r *RedisGeo) Client() *redis.Client { return r.client }

func (r *RedisGeo) Upsert(ctx context.Context, p Position) error {
	if p.Updated.IsZero() {
		p.Updated = time.Now()
	}
	pipe := r.client.TxPipeline()
	pipe.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: p.Loc.Lon, Latitude: p.Loc.Lat, Name: p.AmbulanceID})
	pipe.HSet(ctx, MetaKey(p.AmbulanceID), MetaFields(p))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis geo upsert %s: %w", p.AmbulanceID, err)
	}
	return nil
}

func (r *RedisGeo) Remove(ctx context.Context, ambulanceID string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, r.key, ambulanceID)
	pipe.Del(ctx, MetaKey(ambulanceID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis geo remove %s: %w", ambulanceID, err)
	}
	return nil
}

func (r *RedisGeo) Nearby(ctx context.Context, at models.Coord, radiusM float64, limit int) ([]Position, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  at.Lon,
			Latitude:   at.Lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geo search: %w", err)
	}
	out := make([]Position, 0, len(res))
	for _, g := range res {
		p := Position{
			AmbulanceID: g.Name,
			Loc:         models.Coord{Lat: g.Latitude, Lon: g.Longitude},
			DistanceM:   g.Dist,
		}
		if m, err := r.client.HGetAll(ctx, MetaKey(g.Name)).Result(); err == nil {
			applyMeta(&p, m)
		}
		out = append(out, p)
	}
	return out, nil
}

// MetaKey is shared with the location consumer so both writers agree.
func MetaKey(id string) string { return "ambulance:meta:" + id }

func MetaFields(p Position) map[string]any {
	return map[string]any{
		"hospital":  p.HospitalID,
		"available": strconv.FormatBool(p.Available),
		"updated":   p.Updated.UTC().Format(time.RFC3339),
	}
}

func applyMeta(p *Position, m map[string]string) {
	p.HospitalID = m["hospital"]
	p.Available = m["available"] == "true"
	if v, ok := m["updated"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.Updated = t
		}
	}
}

package travel

import (
	"errors"

	"go.uber.org/zap"

	"colonynav.ai/internal/nav"
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/nav/gridsearch"
	"colonynav.ai/internal/nav/route"
)

type searchOutcome struct {
	path       []geo.Direction
	end        geo.Tile
	ops        int
	incomplete bool
}

// search runs the two-phase search: a region route for long trips, then the
// tile search restricted to the routed regions. A short trip that came back
// incomplete without a route is retried once with one.
func (e *Engine) search(a nav.Agent, origin, dest geo.Tile, reach int, opts Options, fresh, recovering bool) searchOutcome {
	dist := e.world.RegionLinearDistance(origin.Region, dest.Region)
	routed := opts.ForceRoute || dist > e.cfg.MinRouteDistance

	out := e.searchOnce(a, origin, dest, reach, opts, fresh, recovering, routed, dist)
	if out.incomplete && !routed && dist > 0 {
		e.log.Debug("short search incomplete, retrying with a route",
			zap.String("agent", a.Name()), zap.Stringer("dest", dest))
		retry := e.searchOnce(a, origin, dest, reach, opts, fresh, recovering, true, dist)
		retry.ops += out.ops
		return retry
	}
	return out
}

func (e *Engine) searchOnce(a nav.Agent, origin, dest geo.Tile, reach int, opts Options, fresh, recovering, routed bool, dist int) searchOutcome {
	var out searchOutcome
	var allowed map[geo.RegionID]bool
	if routed {
		r, err := e.router.Route(origin.Region, dest.Region, route.Options{
			AllowHazardous:   opts.AllowHazardousRegions,
			PreferHighways:   opts.PreferHighways,
			HighwayInterval:  e.cfg.HighwayInterval,
			RestrictDistance: opts.RestrictDistance,
		})
		out.ops += r.Ops
		switch {
		case err == nil:
			allowed = r.Allowed()
		case errors.Is(err, route.ErrNoRoute) && dist > e.cfg.MinRouteDistance:
			e.log.Debug("no route",
				zap.String("agent", a.Name()),
				zap.Stringer("from", origin.Region),
				zap.Stringer("to", dest.Region))
			return out
		}
	}

	provider := costgrid.Chain(e.store.Provider(e.occupants),
		costgrid.Restrict(allowed),
		costgrid.WithObstacles(opts.ExtraObstacles),
		opts.Grids,
	)
	req := costgrid.Request{Role: a.Role(), Fresh: fresh, IgnoreStructures: opts.IgnoreStructures}
	grids := func(id geo.RegionID) (*costgrid.Grid, bool) {
		r := req
		r.Region = id
		// Agents only matter where they stand now: the origin region.
		r.Dynamic = recovering && id == origin.Region
		return provider.Grid(r)
	}

	plain, swamp := e.cfg.PlainCost, e.cfg.SwampCost
	switch {
	case opts.OffRoad:
		plain, swamp = 1, 1
	case opts.IgnoreRoads:
		plain, swamp = 1, 5
	}
	maxOps := e.cfg.MaxOps
	if opts.MaxOps > 0 {
		maxOps = opts.MaxOps
	}
	maxRegions := e.cfg.MaxRegions
	if opts.MaxRegions > 0 {
		maxRegions = opts.MaxRegions
	}

	res := e.searcher.Search(origin, gridsearch.Goal{Pos: dest, Range: reach}, grids, gridsearch.Options{
		MaxOps:     maxOps,
		MaxRegions: maxRegions,
		PlainCost:  plain,
		SwampCost:  swamp,
	})
	out.ops += res.Ops
	out.incomplete = res.Incomplete
	out.path = geo.PathDirections(origin, res.Path)
	if len(out.path) > 0 {
		out.end = geo.Walk(origin, out.path)
	}
	return out
}

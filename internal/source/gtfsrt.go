package source

import (
	"context"
	"slices"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// GTFSRT reads predicted stop times from a GTFS-Realtime TripUpdates feed.
// The whole feed is fetched on every call.
type GTFSRT struct {
	base
	feedURL string
	routeID string
}

// NewGTFSRT builds a source for feedURL. An empty routeID accepts every route.
func NewGTFSRT(feedURL, routeID string, loc *time.Location, timeout time.Duration, opts ...Option) *GTFSRT {
	return &GTFSRT{
		base:    newBase(loc, timeout, opts),
		feedURL: feedURL,
		routeID: routeID,
	}
}

func (g *GTFSRT) FetchFutureArrivals(ctx context.Context, stopID string) []time.Time {
	body, err := g.get(ctx, g.feedURL, stopID)
	if err != nil {
		return nil
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		g.fail(stopID, err)
		return nil
	}

	out := stopTimes(feed, g.routeID, stopID, g.now().In(g.loc))
	for i := range out {
		out[i] = out[i].In(g.loc)
	}
	g.log.Debug().
		Str("stop", stopID).
		Int("entities", len(feed.GetEntity())).
		Int("arrivals", len(out)).
		Msg("fetched trip updates")
	return out
}

// stopTimes collects the predicted arrival (or departure when no arrival is
// given) of every matching trip at stopID that lies after now.
func stopTimes(feed *gtfs.FeedMessage, routeID, stopID string, now time.Time) []time.Time {
	var out []time.Time
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		trip := tu.GetTrip()
		if trip.GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED {
			continue
		}
		if routeID != "" && trip.GetRouteId() != routeID {
			continue
		}
		for _, stu := range tu.GetStopTimeUpdate() {
			if stu.GetStopId() != stopID {
				continue
			}
			if stu.GetScheduleRelationship() == gtfs.TripUpdate_StopTimeUpdate_SKIPPED {
				break
			}
			ts := stu.GetArrival().GetTime()
			if ts == 0 {
				ts = stu.GetDeparture().GetTime()
			}
			if ts == 0 {
				break
			}
			if t := time.Unix(ts, 0); t.After(now) {
				out = append(out, t)
			}
			break
		}
	}
	slices.SortFunc(out, time.Time.Compare)
	return out
}

package warcraftlogs_test

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/adapters/upstream/warcraftlogs"
	"github.com/okian/armory/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const rankingsObject = `{
	"bestPerformanceAverage": 87.3,
	"medianPerformanceAverage": 71.25,
	"difficulty": 5,
	"metric": "dps",
	"partition": 1,
	"zone": 42,
	"allStars": [{"points": 120.5, "possiblePoints": 600, "partition": 1, "rank": 1523, "regionRank": "-", "rankPercent": 88, "spec": "Fire", "serverRank": 4, "total": 90000}],
	"rankings": [{
		"encounter": {"id": 3009, "name": "Vexie and the Geargrinders"},
		"rankPercent": 91.4,
		"medianPercent": 80.2,
		"lockedIn": true,
		"totalKills": 7,
		"fastestKill": 215432,
		"spec": "Fire",
		"bestSpec": "Fire",
		"bestAmount": 1523442.7
	}]
}`

func TestDecodeZoneRankings(t *testing.T) {
	Convey("Given the shapes zoneRankings can take", t, func() {
		Convey("When the payload is an object", func() {
			zr, err := warcraftlogs.DecodeZoneRankings(json.RawMessage(rankingsObject))

			Convey("Then fields pass through", func() {
				So(err, ShouldBeNil)
				So(zr.BestPerformanceAverage, ShouldEqual, 87.3)
				So(zr.MedianPerformanceAverage, ShouldEqual, 71.25)
				So(int(zr.Zone), ShouldEqual, 42)
				So(zr.Metric, ShouldEqual, "dps")
				So(len(zr.AllStars), ShouldEqual, 1)
				So(zr.AllStars[0].Rank, ShouldResemble, model.LenientInt{Value: 1523, Valid: true})
				So(zr.AllStars[0].RegionRank.Valid, ShouldBeFalse)
				So(len(zr.Rankings), ShouldEqual, 1)
				So(zr.Rankings[0].Encounter.Name, ShouldEqual, "Vexie and the Geargrinders")
				So(*zr.Rankings[0].RankPercent, ShouldEqual, 91.4)
				So(zr.Rankings[0].LockedIn, ShouldBeTrue)
			})
		})

		Convey("When the payload is a string holding the same object", func() {
			direct, _ := warcraftlogs.DecodeZoneRankings(json.RawMessage(rankingsObject))
			zr, err := warcraftlogs.DecodeZoneRankings(json.RawMessage(strconv.Quote(rankingsObject)))

			Convey("Then the result is identical", func() {
				So(err, ShouldBeNil)
				So(zr, ShouldResemble, direct)
			})
		})

		Convey("When the payload means no data", func() {
			for _, raw := range []string{``, `null`, `[]`, ` [ ] `, `""`, `"[]"`} {
				zr, err := warcraftlogs.DecodeZoneRankings(json.RawMessage(raw))
				So(err, ShouldBeNil)
				So(zr, ShouldResemble, model.ZoneRankings{})
			}
		})

		Convey("When integer fields arrive as whole-number floats", func() {
			raw := `{"bestPerformanceAverage":87.3,"difficulty":5.0,"partition":1.0,"zone":42.0,"serverRank":3.0,
				"allStars":[{"partition":1.0,"serverRank":4.0,"total":90000.0}],
				"rankings":[{"encounter":{"id":3009.0,"name":"Vexie"},"totalKills":7.0,"fastestKill":215432.0,"serverRank":2.0}]}`
			zr, err := warcraftlogs.DecodeZoneRankings(json.RawMessage(raw))

			Convey("Then they decode as integers and the score survives", func() {
				So(err, ShouldBeNil)
				So(zr.BestPerformanceAverage, ShouldEqual, 87.3)
				So(int(zr.Difficulty), ShouldEqual, 5)
				So(int(zr.Zone), ShouldEqual, 42)
				So(int(zr.AllStars[0].Total), ShouldEqual, 90000)
				So(int(zr.Rankings[0].Encounter.ID), ShouldEqual, 3009)
				So(int(zr.Rankings[0].TotalKills), ShouldEqual, 7)
				So(int(zr.Rankings[0].FastestKill), ShouldEqual, 215432)
			})
		})

		Convey("When the payload is unrecognized", func() {
			for _, raw := range []string{`"not json"`, `42`, `true`, `[1,2]`, `"42"`, `{"bestPerformanceAverage":"high"}`, `{"difficulty":"hard"}`} {
				_, err := warcraftlogs.DecodeZoneRankings(json.RawMessage(raw))
				var me *upstream.MalformedError
				So(errors.As(err, &me), ShouldBeTrue)
				So(errors.Is(err, upstream.ErrMalformedResponse), ShouldBeTrue)
			}
		})
	})
}

package command

import (
	"errors"
	"strconv"
	"strings"

	"github.com/adred-codev/respd/internal/resp"
)

var errUnsupportedUnit = errors.New("ERR unsupported unit provided. please use m, km, ft, mi")

// unitToMeters converts a GEOSEARCH/GEODIST unit suffix to a meters
// multiplier.
func unitToMeters(unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "m":
		return 1, nil
	case "km":
		return 1000, nil
	case "ft":
		return 0.3048, nil
	case "mi":
		return 1609.344, nil
	default:
		return 0, errUnsupportedUnit
	}
}

func (srv *Server) applyGeoAdd(cmd Command) Result {
	if len(cmd.Args) != 4 {
		return errResult("ERR wrong number of arguments for 'geoadd' command")
	}
	lon, err1 := strconv.ParseFloat(cmd.Args[1], 64)
	lat, err2 := strconv.ParseFloat(cmd.Args[2], 64)
	if err1 != nil || err2 != nil {
		return errResult("ERR value is not a valid float")
	}
	n, err := srv.Store.GeoAdd(cmd.Args[0], cmd.Args[3], lon, lat)
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

func (srv *Server) applyGeoPos(cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'geopos' command")
	}
	pos, ok, err := srv.Store.GeoPos(cmd.Args[0], cmd.Args[1])
	if err != nil {
		return errResult(err.Error())
	}
	if !ok {
		return single(resp.NullArray())
	}
	return single(resp.ArrayOf(
		resp.ArrayOf(
			resp.BulkStringOf(strconv.FormatFloat(pos.Longitude, 'f', 17, 64)),
			resp.BulkStringOf(strconv.FormatFloat(pos.Latitude, 'f', 17, 64)),
		),
	))
}

func (srv *Server) applyGeoDist(cmd Command) Result {
	if len(cmd.Args) < 3 || len(cmd.Args) > 4 {
		return errResult("ERR wrong number of arguments for 'geodist' command")
	}
	unit := "m"
	if len(cmd.Args) == 4 {
		unit = cmd.Args[3]
	}
	mult, err := unitToMeters(unit)
	if err != nil {
		return errResult(err.Error())
	}
	dist, ok, err := srv.Store.GeoDist(cmd.Args[0], cmd.Args[1], cmd.Args[2])
	if err != nil {
		return errResult(err.Error())
	}
	if !ok {
		return single(resp.NullBulk())
	}
	return single(resp.BulkStringOf(strconv.FormatFloat(dist/mult, 'f', 4, 64)))
}

// applyGeoSearch parses "key FROMLONLAT lon lat BYRADIUS radius unit"
// and returns members within radius sorted by ascending distance.
func (srv *Server) applyGeoSearch(cmd Command) Result {
	if len(cmd.Args) != 7 {
		return errResult("ERR syntax error")
	}
	key := cmd.Args[0]
	if !strings.EqualFold(cmd.Args[1], "FROMLONLAT") || !strings.EqualFold(cmd.Args[4], "BYRADIUS") {
		return errResult("ERR syntax error")
	}
	lon, err1 := strconv.ParseFloat(cmd.Args[2], 64)
	lat, err2 := strconv.ParseFloat(cmd.Args[3], 64)
	radius, err3 := strconv.ParseFloat(cmd.Args[5], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return errResult("ERR value is not a valid float")
	}
	mult, err := unitToMeters(cmd.Args[6])
	if err != nil {
		return errResult(err.Error())
	}

	results, err := srv.Store.GeoSearch(key, lon, lat, radius*mult)
	if err != nil {
		return errResult(err.Error())
	}
	items := make([]resp.Frame, len(results))
	for i, r := range results {
		items[i] = resp.ArrayOf(
			resp.BulkStringOf(r.Member),
			resp.BulkStringOf(strconv.FormatFloat(r.Distance/mult, 'f', 4, 64)),
		)
	}
	return single(resp.ArrayOf(items...))
}

package command

import (
	"strconv"

	"github.com/adred-codev/respd/internal/resp"
)

func (srv *Server) applyZAdd(cmd Command) Result {
	if len(cmd.Args) < 3 || len(cmd.Args)%2 != 1 {
		return errResult("ERR wrong number of arguments for 'zadd' command")
	}
	key := cmd.Args[0]
	pairs := cmd.Args[1:]
	scores := make(map[string]float64, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		score, err := strconv.ParseFloat(pairs[i], 64)
		if err != nil {
			return errResult("ERR value is not a valid float")
		}
		scores[pairs[i+1]] = score
	}
	n, err := srv.Store.ZAdd(key, scores)
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

func (srv *Server) applyZRank(cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'zrank' command")
	}
	rank, ok, err := srv.Store.ZRank(cmd.Args[0], cmd.Args[1])
	if err != nil {
		return errResult(err.Error())
	}
	if !ok {
		return single(resp.NullBulk())
	}
	return single(resp.IntegerFrame(int64(rank)))
}

func (srv *Server) applyZRange(cmd Command) Result {
	if len(cmd.Args) != 3 {
		return errResult("ERR wrong number of arguments for 'zrange' command")
	}
	start, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return errResult("ERR value is not an integer or out of range")
	}
	end, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		return errResult("ERR value is not an integer or out of range")
	}
	members, _, err := srv.Store.ZRange(cmd.Args[0], start, end)
	if err != nil {
		return errResult(err.Error())
	}
	items := make([]resp.Frame, len(members))
	for i, m := range members {
		items[i] = resp.BulkStringOf(m)
	}
	return single(resp.ArrayOf(items...))
}

func (srv *Server) applyZCard(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'zcard' command")
	}
	n, err := srv.Store.ZCard(cmd.Args[0])
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

func (srv *Server) applyZScore(cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'zscore' command")
	}
	score, ok, err := srv.Store.ZScore(cmd.Args[0], cmd.Args[1])
	if err != nil {
		return errResult(err.Error())
	}
	if !ok {
		return single(resp.NullBulk())
	}
	return single(resp.BulkStringOf(strconv.FormatFloat(score, 'g', -1, 64)))
}

func (srv *Server) applyZRem(cmd Command) Result {
	if len(cmd.Args) < 2 {
		return errResult("ERR wrong number of arguments for 'zrem' command")
	}
	n, err := srv.Store.ZRem(cmd.Args[0], cmd.Args[1:]...)
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

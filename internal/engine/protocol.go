package engine

import (
	"strconv"
	"strings"
)

// infoLine is one parsed "info ... score ..." diagnostic line.
type infoLine struct {
	Depth   int
	Nodes   int64
	ScoreCP int
	MateIn  int
	PV      []string
}

// parseInfo parses a UCI "info" line carrying a score. Returns ok=false for
// info lines without one (currmove updates and the like).
func parseInfo(line string) (infoLine, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return infoLine{}, false
	}
	var out infoLine
	scored := false
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				out.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(fields) {
				out.Nodes, _ = strconv.ParseInt(fields[i+1], 10, 64)
				i++
			}
		case "score":
			if i+2 < len(fields) {
				v, err := strconv.Atoi(fields[i+2])
				if err == nil {
					switch fields[i+1] {
					case "cp":
						out.ScoreCP = v
						scored = true
					case "mate":
						out.MateIn = v
						scored = true
					}
				}
				i += 2
			}
		case "pv":
			out.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}
	return out, scored
}

// parseBestMove extracts the move from a "bestmove e2e4 [ponder ...]" line.
func parseBestMove(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return "", false
	}
	if fields[1] == "(none)" {
		return "", true
	}
	return fields[1], true
}

// portalconv converts a legacy SQL dump of portals and stations to constant_list.yaml.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/orbitcore/server/internal/data"
	"gopkg.in/yaml.v3"
)

// INSERT INTO `portals` VALUES ('1', '18500', '2000', '2', '2000', '11600', '1-1 -> 1-2');
var portalRe = regexp.MustCompile(`INSERT INTO\s+` + "`?portals`?" + `\s+VALUES\s*\(\s*'(-?\d+)'\s*,\s*'(-?[\d.]+)'\s*,\s*'(-?[\d.]+)'\s*,\s*'(-?\d+)'\s*,\s*'(-?[\d.]+)'\s*,\s*'(-?[\d.]+)'\s*,\s*'([^']*)'\s*\)`)

// INSERT INTO `stations` VALUES ('1', 'MMO base', '1600', '1600', '1');
var stationRe = regexp.MustCompile(`INSERT INTO\s+` + "`?stations`?" + `\s+VALUES\s*\(\s*'(-?\d+)'\s*,\s*'([^']*)'\s*,\s*'(-?[\d.]+)'\s*,\s*'(-?[\d.]+)'\s*,\s*'(\d+)'\s*\)`)

type constantList struct {
	Portals  []data.PortalEntry  `yaml:"portals"`
	Stations []data.StationEntry `yaml:"stations"`
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: portalconv <constants.sql> <output.yaml>")
		os.Exit(1)
	}

	inFile, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer inFile.Close()

	list, skipped, err := parse(inFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out, err := os.Create(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer out.Close()

	if err := write(out, list); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d portals and %d stations to %s (%d lines skipped)\n",
		len(list.Portals), len(list.Stations), os.Args[2], skipped)
}

// parse reads INSERT statements line by line. Lines that look like an
// INSERT but do not match either table are counted as skipped.
func parse(r io.Reader) (constantList, int, error) {
	var list constantList
	skipped := 0

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, len(buf))

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "INSERT INTO") {
			continue
		}
		if m := portalRe.FindStringSubmatch(line); m != nil {
			list.Portals = append(list.Portals, data.PortalEntry{
				MapID:       atoi32(m[1]),
				X:           atof(m[2]),
				Y:           atof(m[3]),
				TargetMapID: atoi32(m[4]),
				TargetX:     atof(m[5]),
				TargetY:     atof(m[6]),
				Note:        m[7],
			})
			continue
		}
		if m := stationRe.FindStringSubmatch(line); m != nil {
			faction, _ := strconv.ParseUint(m[5], 10, 8)
			list.Stations = append(list.Stations, data.StationEntry{
				MapID:   atoi32(m[1]),
				Name:    m[2],
				X:       atof(m[3]),
				Y:       atof(m[4]),
				Faction: uint8(faction),
			})
			continue
		}
		skipped++
	}
	if err := scanner.Err(); err != nil {
		return list, skipped, fmt.Errorf("read dump: %w", err)
	}

	// Sort by map_id, x, y
	sort.Slice(list.Portals, func(i, j int) bool {
		a, b := list.Portals[i], list.Portals[j]
		if a.MapID != b.MapID {
			return a.MapID < b.MapID
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	sort.SliceStable(list.Stations, func(i, j int) bool {
		return list.Stations[i].MapID < list.Stations[j].MapID
	})
	return list, skipped, nil
}

func write(w io.Writer, list constantList) error {
	fmt.Fprintf(w, "# Constant objects, auto-generated by portalconv (%d portals, %d stations)\n",
		len(list.Portals), len(list.Stations))
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func atoi32(s string) int32 {
	n, _ := strconv.ParseInt(s, 10, 32)
	return int32(n)
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

package geo

import (
	"sort"
	"strings"
)

// Directory maps location keys (hospital names) to coordinates. Keys not in
// the directory are still valid mission endpoints; they just have no position.
type Directory struct {
	points map[string]Point
}

// NewDirectory builds a directory from the given entries.
func NewDirectory(entries map[string]Point) *Directory {
	d := &Directory{points: make(map[string]Point, len(entries))}
	for k, p := range entries {
		d.points[strings.TrimSpace(k)] = p
	}
	return d
}

// DefaultDirectory returns the Kochi hospital network.
func DefaultDirectory() *Directory {
	return NewDirectory(kochiHospitals)
}

// Lookup returns the coordinates of key.
func (d *Directory) Lookup(key string) (Point, bool) {
	if d == nil {
		return Point{}, false
	}
	p, ok := d.points[strings.TrimSpace(key)]
	return p, ok
}

// Keys returns every known key in sorted order.
func (d *Directory) Keys() []string {
	out := make([]string, 0, len(d.points))
	for k := range d.points {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DistanceKm returns the straight-line distance between two keys, if both are known.
func (d *Directory) DistanceKm(from, to string) (float64, bool) {
	a, ok := d.Lookup(from)
	if !ok {
		return 0, false
	}
	b, ok := d.Lookup(to)
	if !ok {
		return 0, false
	}
	return HaversineKm(a, b), true
}

var kochiHospitals = map[string]Point{
	"Aster Medcity (Cheranallur)":      {10.0575, 76.2652},
	"Amrita AIMS (Edappally)":          {10.0326, 76.2997},
	"Rajagiri Hospital (Aluva)":        {10.0536, 76.3557},
	"Medical Trust Hospital (MG Road)": {9.9655, 76.2933},
	"Lisie Hospital (Kaloor)":          {9.9904, 76.2872},
	"General Hospital (Ernakulam)":     {9.9734, 76.2818},
	"VPS Lakeshore (Nettoor)":          {9.9337, 76.3074},
	"Renai Medicity (Palarivattom)":    {10.0076, 76.3053},
	"Sunrise Hospital (Kakkanad)":      {10.0069, 76.3308},
	"Apollo Adlux (Angamaly)":          {10.1800, 76.3700},
	"Lourdes Hospital (Pachalam)":      {9.9980, 76.2920},
	"PVS Memorial (Kaloor)":            {9.9940, 76.2900},
	"Specialist Hospital (North)":      {9.9920, 76.2880},
	"EMC (Palarivattom)":               {10.0020, 76.3150},
	"Kinder Hospital (Pathadipalam)":   {10.0300, 76.3100},
	"Gautham Hospital (Panayappilly)":  {9.9480, 76.2600},
	"Welcare Hospital (Vyttila)":       {9.9698, 76.3211},
	"Cochin Hospital":                  {9.9600, 76.2950},
	"Silverline Hospital":              {9.9750, 76.3200},
	"MAJ Hospital (Edappally)":         {10.0250, 76.3100},
	"Carmel Hospital (Aluva)":          {10.1100, 76.3500},
	"Don Bosco Hospital":               {10.0000, 76.2700},
	"Fort Kochi Taluk Hospital":        {9.9650, 76.2400},
	"Samaritan Hospital":               {10.1900, 76.3800},
}

// Package sun computes the apparent solar position for a site and time,
// and the incident ray direction the kinematic alignment consumes.
// Uses a simplified solar ephemeris based on the Astronomical Almanac;
// accuracy is a small fraction of a degree, sufficient for tracking.
package sun

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position returns the sun's azimuth (degrees, clockwise from north) and
// elevation (degrees above the horizon) for a site at the given latitude and
// longitude (degrees, east positive) and time.
func Position(t time.Time, latDeg, lonDeg float64) (azDeg, elDeg float64) {
	jd := julianDate(t.UTC())

	// Julian centuries from J2000.0
	T := (jd - 2451545.0) / 36525.0

	// Mean longitude and mean anomaly of the Sun (degrees)
	L0 := normalizeDeg(280.46646 + 36000.76983*T + 0.0003032*T*T)
	M := normalizeDeg(357.52911 + 35999.05029*T - 0.0001537*T*T)
	Mrad := degToRad(M)

	// Equation of center
	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(Mrad) +
		(0.019993-0.000101*T)*math.Sin(2*Mrad) +
		0.000289*math.Sin(3*Mrad)

	// Apparent longitude, corrected for aberration and nutation
	omega := 125.04 - 1934.136*T
	lambda := degToRad(L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega)))

	// Obliquity of the ecliptic, corrected
	eps := degToRad(23.439291 - 0.0130042*T + 0.00256*math.Cos(degToRad(omega)))

	// Equatorial coordinates
	ra := math.Atan2(math.Cos(eps)*math.Sin(lambda), math.Cos(lambda))
	dec := math.Asin(math.Sin(eps) * math.Sin(lambda))

	// Local hour angle via Greenwich mean sidereal time
	gmst := normalizeDeg(280.46061837 + 360.98564736629*(jd-2451545.0))
	H := degToRad(normalizeDeg(gmst + lonDeg - radToDeg(ra)))

	lat := degToRad(latDeg)
	sinEl := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(H)
	el := math.Asin(sinEl)

	// Azimuth from south, westward positive, then shifted to north-clockwise.
	az := math.Atan2(math.Sin(H), math.Cos(H)*math.Sin(lat)-math.Tan(dec)*math.Cos(lat))
	azDeg = normalizeDeg(radToDeg(az) + 180)
	return azDeg, radToDeg(el)
}

// Direction converts azimuth/elevation (degrees) to the ENU unit vector
// pointing from the site toward the sun.
func Direction(azDeg, elDeg float64) r3.Vec {
	az := degToRad(azDeg)
	el := degToRad(elDeg)
	return r3.Vec{
		X: math.Sin(az) * math.Cos(el),
		Y: math.Cos(az) * math.Cos(el),
		Z: math.Sin(el),
	}
}

// IncidentRay returns the direction of light travel (sun toward the site) as
// an ENU unit vector, ready to feed the kinematic alignment.
func IncidentRay(t time.Time, latDeg, lonDeg float64) r3.Vec {
	az, el := Position(t, latDeg, lonDeg)
	return r3.Scale(-1, Direction(az, el))
}

// Elevation returns only the solar elevation in degrees. Tracking uses it to
// decide whether the sun is above the horizon.
func Elevation(t time.Time, latDeg, lonDeg float64) float64 {
	_, el := Position(t, latDeg, lonDeg)
	return el
}

// julianDate converts a UTC time to a Julian Date.
func julianDate(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day()) +
		(float64(t.Hour())+float64(t.Minute())/60.0+float64(t.Second())/3600.0)/24.0

	if m <= 2 {
		y--
		m += 12
	}
	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
}

func normalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }
func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }

package codec

import "github.com/jmylchreest/mediatool/internal/media"

// Code point names follow ITU-T H.273 as spelled by ffprobe.

var colorPrimaries = map[int]string{
	1: "bt709", 2: unknown, 4: "bt470m", 5: "bt470bg", 6: "smpte170m",
	7: "smpte240m", 8: "film", 9: "bt2020", 10: "smpte428", 11: "smpte431",
	12: "smpte432", 22: "ebu3213",
}

var transferCharacteristics = map[int]string{
	1: "bt709", 2: unknown, 4: "bt470m", 5: "bt470bg", 6: "smpte170m",
	7: "smpte240m", 8: "linear", 9: "log100", 10: "log316",
	11: "iec61966-2-4", 12: "bt1361e", 13: "iec61966-2-1", 14: "bt2020-10",
	15: "bt2020-12", 16: "smpte2084", 17: "smpte428", 18: "arib-std-b67",
}

var matrixCoefficients = map[int]string{
	0: "gbr", 1: "bt709", 2: unknown, 4: "fcc", 5: "bt470bg", 6: "smpte170m",
	7: "smpte240m", 8: "ycgco", 9: "bt2020nc", 10: "bt2020c", 11: "smpte2085",
	12: "chroma-derived-nc", 13: "chroma-derived-c", 14: "ictcp",
}

var chromaLocations = []string{"left", "center", "topleft", "top", "bottomleft", "bottom"}

// Table E-1 sample aspect ratios, indexed by aspect_ratio_idc.
var aspectRatios = []media.Rational{
	{},
	{Num: 1, Den: 1},
	{Num: 12, Den: 11},
	{Num: 10, Den: 11},
	{Num: 16, Den: 11},
	{Num: 40, Den: 33},
	{Num: 24, Den: 11},
	{Num: 20, Den: 11},
	{Num: 32, Den: 11},
	{Num: 80, Den: 33},
	{Num: 18, Den: 11},
	{Num: 15, Den: 11},
	{Num: 64, Den: 33},
	{Num: 160, Den: 99},
	{Num: 4, Den: 3},
	{Num: 3, Den: 2},
	{Num: 2, Den: 1},
}

const aspectRatioExtendedSAR = 255

func lookupName(table map[int]string, code int) string {
	if name, ok := table[code]; ok {
		return name
	}
	return unknown
}

func colorPrimariesName(code int) string { return lookupName(colorPrimaries, code) }
func transferName(code int) string       { return lookupName(transferCharacteristics, code) }
func matrixName(code int) string         { return lookupName(matrixCoefficients, code) }

func chromaLocationName(code int) string {
	if code < 0 || code >= len(chromaLocations) {
		return unknown
	}
	return chromaLocations[code]
}

func sampleAspectRatio(idc, sarWidth, sarHeight int) media.Rational {
	if idc == aspectRatioExtendedSAR {
		if sarWidth > 0 && sarHeight > 0 {
			return media.Rational{Num: sarWidth, Den: sarHeight}
		}
		return media.Rational{}
	}
	if idc > 0 && idc < len(aspectRatios) {
		return aspectRatios[idc]
	}
	return media.Rational{}
}

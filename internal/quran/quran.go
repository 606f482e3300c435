package quran

import "quranbot/internal/models"

// Surah describes one surah of the Quran.
type Surah struct {
	Number int64
	Name   string
	Verses int64
}

const SurahCount = 114

// surahs holds the canonical ordering: 114 surahs, 6236 verses total.
var surahs = [SurahCount]Surah{
	{1, "Al-Fatihah", 7},
	{2, "Al-Baqarah", 286},
	{3, "Ali 'Imran", 200},
	{4, "An-Nisa", 176},
	{5, "Al-Ma'idah", 120},
	{6, "Al-An'am", 165},
	{7, "Al-A'raf", 206},
	{8, "Al-Anfal", 75},
	{9, "At-Tawbah", 129},
	{10, "Yunus", 109},
	{11, "Hud", 123},
	{12, "Yusuf", 111},
	{13, "Ar-Ra'd", 43},
	{14, "Ibrahim", 52},
	{15, "Al-Hijr", 99},
	{16, "An-Nahl", 128},
	{17, "Al-Isra", 111},
	{18, "Al-Kahf", 110},
	{19, "Maryam", 98},
	{20, "Taha", 135},
	{21, "Al-Anbya", 112},
	{22, "Al-Hajj", 78},
	{23, "Al-Mu'minun", 118},
	{24, "An-Nur", 64},
	{25, "Al-Furqan", 77},
	{26, "Ash-Shu'ara", 227},
	{27, "An-Naml", 93},
	{28, "Al-Qasas", 88},
	{29, "Al-'Ankabut", 69},
	{30, "Ar-Rum", 60},
	{31, "Luqman", 34},
	{32, "As-Sajdah", 30},
	{33, "Al-Ahzab", 73},
	{34, "Saba", 54},
	{35, "Fatir", 45},
	{36, "Ya-Sin", 83},
	{37, "As-Saffat", 182},
	{38, "Sad", 88},
	{39, "Az-Zumar", 75},
	{40, "Ghafir", 85},
	{41, "Fussilat", 54},
	{42, "Ash-Shuraa", 53},
	{43, "Az-Zukhruf", 89},
	{44, "Ad-Dukhan", 59},
	{45, "Al-Jathiyah", 37},
	{46, "Al-Ahqaf", 35},
	{47, "Muhammad", 38},
	{48, "Al-Fath", 29},
	{49, "Al-Hujurat", 18},
	{50, "Qaf", 45},
	{51, "Adh-Dhariyat", 60},
	{52, "At-Tur", 49},
	{53, "An-Najm", 62},
	{54, "Al-Qamar", 55},
	{55, "Ar-Rahman", 78},
	{56, "Al-Waqi'ah", 96},
	{57, "Al-Hadid", 29},
	{58, "Al-Mujadila", 22},
	{59, "Al-Hashr", 24},
	{60, "Al-Mumtahanah", 13},
	{61, "As-Saf", 14},
	{62, "Al-Jumu'ah", 11},
	{63, "Al-Munafiqun", 11},
	{64, "At-Taghabun", 18},
	{65, "At-Talaq", 12},
	{66, "At-Tahrim", 12},
	{67, "Al-Mulk", 30},
	{68, "Al-Qalam", 52},
	{69, "Al-Haqqah", 52},
	{70, "Al-Ma'arij", 44},
	{71, "Nuh", 28},
	{72, "Al-Jinn", 28},
	{73, "Al-Muzzammil", 20},
	{74, "Al-Muddaththir", 56},
	{75, "Al-Qiyamah", 40},
	{76, "Al-Insan", 31},
	{77, "Al-Mursalat", 50},
	{78, "An-Naba", 40},
	{79, "An-Nazi'at", 46},
	{80, "Abasa", 42},
	{81, "At-Takwir", 29},
	{82, "Al-Infitar", 19},
	{83, "Al-Mutaffifin", 36},
	{84, "Al-Inshiqaq", 25},
	{85, "Al-Buruj", 22},
	{86, "At-Tariq", 17},
	{87, "Al-A'la", 19},
	{88, "Al-Ghashiyah", 26},
	{89, "Al-Fajr", 30},
	{90, "Al-Balad", 20},
	{91, "Ash-Shams", 15},
	{92, "Al-Layl", 21},
	{93, "Ad-Duhaa", 11},
	{94, "Ash-Sharh", 8},
	{95, "At-Tin", 8},
	{96, "Al-'Alaq", 19},
	{97, "Al-Qadr", 5},
	{98, "Al-Bayyinah", 8},
	{99, "Az-Zalzalah", 8},
	{100, "Al-'Adiyat", 11},
	{101, "Al-Qari'ah", 11},
	{102, "At-Takathur", 8},
	{103, "Al-'Asr", 3},
	{104, "Al-Humazah", 9},
	{105, "Al-Fil", 5},
	{106, "Quraysh", 4},
	{107, "Al-Ma'un", 7},
	{108, "Al-Kawthar", 3},
	{109, "Al-Kafirun", 6},
	{110, "An-Nasr", 3},
	{111, "Al-Masad", 5},
	{112, "Al-Ikhlas", 4},
	{113, "Al-Falaq", 5},
	{114, "An-Nas", 6},
}

// SurahInfo returns the surah with the given 1-based number.
func SurahInfo(number int64) (Surah, bool) {
	if number < 1 || number > SurahCount {
		return Surah{}, false
	}
	return surahs[number-1], true
}

// NextPosition returns the position immediately after pos in reading
// order. The second return value is false when pos is the final verse
// of the final surah (or outside the catalog), meaning there is no
// further content.
func NextPosition(pos models.Position) (models.Position, bool) {
	info, ok := SurahInfo(pos.Surah)
	if !ok {
		return models.Position{}, false
	}

	if pos.Verse < info.Verses {
		return models.Position{Surah: pos.Surah, Verse: pos.Verse + 1}, true
	}

	if pos.Surah < SurahCount {
		return models.Position{Surah: pos.Surah + 1, Verse: 1}, true
	}

	return models.Position{}, false
}

// TotalVerses returns the number of verses in the whole Quran.
func TotalVerses() int64 {
	var total int64
	for _, s := range surahs {
		total += s.Verses
	}
	return total
}

// VersesBefore returns how many verses precede pos in reading order,
// which is the number of verses already read by a subscriber whose
// cursor is at pos.
func VersesBefore(pos models.Position) int64 {
	if _, ok := SurahInfo(pos.Surah); !ok {
		return 0
	}

	var count int64
	for _, s := range surahs[:pos.Surah-1] {
		count += s.Verses
	}
	return count + pos.Verse - 1
}

package models

import "time"

// Position is a reading cursor into the Quran. Both indices are
// 1-based; Surah is in 1..114 and Verse is in 1..verse count of the
// surah.
type Position struct {
	Surah int64
	Verse int64
}

// User is one subscriber record as stored in the users table.
//
// Position points at the next verse to deliver, not the last one
// delivered. LastRequestDate is a calendar date in the bot's
// configured time zone, formatted as time.DateOnly; empty means the
// user has never made a request.
type User struct {
	UserID          int64
	ChatID          int64
	Position        Position
	Active          bool
	Completed       bool
	CreatedAt       time.Time
	LastSentAt      *time.Time
	RequestsToday   int64
	LastRequestDate string
}

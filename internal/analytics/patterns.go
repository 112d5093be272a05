package analytics

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
)

const (
	businessStart = 9
	businessEnd   = 18 // exclusive

	// DefaultCostThreshold flags sessions costing more than one dollar
	DefaultCostThreshold = 1.0
)

// HourlyMetrics is the usage of sessions last active in one clock hour
type HourlyMetrics struct {
	Hour         int              `json:"hour"`
	Usage        model.TokenUsage `json:"usage"`
	SessionCount int              `json:"session_count"`
}

// TimeOfDayAnalysis buckets sessions by the UTC hour of their last activity
type TimeOfDayAnalysis struct {
	Hourly             []HourlyMetrics  `json:"hourly_usage"` // Hours with usage, ascending
	PeakHour           int              `json:"peak_hour"`
	OffPeakHour        int              `json:"off_peak_hour"`
	BusinessHoursUsage model.TokenUsage `json:"business_hours_usage"`
	AfterHoursUsage    model.TokenUsage `json:"after_hours_usage"`
}

// WeekdayUsage is the usage of sessions last active on one weekday
type WeekdayUsage struct {
	Day   string           `json:"day"`
	Usage model.TokenUsage `json:"usage"`
}

// DayOfWeekAnalysis buckets sessions by ISO weekday of their last activity
type DayOfWeekAnalysis struct {
	Daily                 []WeekdayUsage `json:"daily_usage"` // Monday first
	MostActiveDay         string         `json:"most_active_day"`
	LeastActiveDay        string         `json:"least_active_day"`
	WeekendVsWeekdayRatio float64        `json:"weekend_vs_weekday_ratio"`
}

// SessionInfo identifies one session with its totals
type SessionInfo struct {
	Path         string  `json:"path"`
	DurationSecs float64 `json:"duration_secs"`
	Tokens       int64   `json:"tokens"`
	Cost         float64 `json:"cost"`
}

// DurationDistribution counts sessions per duration bucket
type DurationDistribution struct {
	Under5Min  int `json:"under_5_min"`
	Min5To30   int `json:"min_5_to_30"`
	Min30To60  int `json:"min_30_to_60"`
	Hour1To3   int `json:"hour_1_to_3"`
	Over3Hours int `json:"over_3_hours"`
}

// DurationAnalysis summarizes first-to-last activity spans
type DurationAnalysis struct {
	AvgSessionDuration time.Duration        `json:"-"`
	AvgDurationSecs    float64              `json:"avg_session_duration_secs"`
	Longest            SessionInfo          `json:"longest_session"`
	Shortest           SessionInfo          `json:"shortest_session"`
	Distribution       DurationDistribution `json:"duration_distribution"`
}

// FrequencyAnalysis describes how often sessions happen
type FrequencyAnalysis struct {
	SessionsPerDay          float64 `json:"sessions_per_day"`
	SessionsPerWeek         float64 `json:"sessions_per_week"`
	DaysWithUsage           int     `json:"days_with_usage"`
	LongestStreak           int     `json:"longest_streak"`
	CurrentStreak           int     `json:"current_streak"`
	AvgSessionsPerActiveDay float64 `json:"avg_sessions_per_active_day"`
}

// CostEfficiencyAnalysis ranks sessions by spend and tokens per dollar
type CostEfficiencyAnalysis struct {
	MostExpensive          SessionInfo   `json:"most_expensive_session"`
	MostEfficient          SessionInfo   `json:"most_efficient_session"`
	LeastEfficient         SessionInfo   `json:"least_efficient_session"`
	SessionsAboveThreshold []SessionInfo `json:"sessions_above_threshold"`
	CostThreshold          float64       `json:"cost_threshold"`
}

// SessionPatterns bundles every session pattern analysis
type SessionPatterns struct {
	TimeOfDay      TimeOfDayAnalysis      `json:"time_of_day"`
	DayOfWeek      DayOfWeekAnalysis      `json:"day_of_week"`
	Durations      DurationAnalysis       `json:"durations"`
	Frequency      FrequencyAnalysis      `json:"frequency"`
	CostEfficiency CostEfficiencyAnalysis `json:"cost_efficiency"`
}

// AnalyzeSessions runs every session pattern analysis
func AnalyzeSessions(sessions []aggregator.SessionBucket, now time.Time, costThreshold float64) SessionPatterns {
	return SessionPatterns{
		TimeOfDay:      analyzeTimeOfDay(sessions),
		DayOfWeek:      analyzeDayOfWeek(sessions),
		Durations:      analyzeDurations(sessions),
		Frequency:      analyzeFrequency(sessions, now),
		CostEfficiency: analyzeCostEfficiency(sessions, costThreshold),
	}
}

func analyzeTimeOfDay(sessions []aggregator.SessionBucket) TimeOfDayAnalysis {
	var a TimeOfDayAnalysis
	byHour := make(map[int]*HourlyMetrics)
	for _, s := range sessions {
		h := s.LastActivity.UTC().Hour()
		m, ok := byHour[h]
		if !ok {
			m = &HourlyMetrics{Hour: h}
			byHour[h] = m
		}
		m.Usage.Add(s.Usage)
		m.SessionCount++
		if h >= businessStart && h < businessEnd {
			a.BusinessHoursUsage.Add(s.Usage)
		} else {
			a.AfterHoursUsage.Add(s.Usage)
		}
	}

	hours := lo.Keys(byHour)
	sort.Ints(hours)
	a.Hourly = make([]HourlyMetrics, 0, len(hours))
	for _, h := range hours {
		a.Hourly = append(a.Hourly, *byHour[h])
	}
	if len(a.Hourly) == 0 {
		return a
	}

	peak, off := a.Hourly[0], a.Hourly[0]
	for _, m := range a.Hourly[1:] {
		if m.Usage.TotalTokens() > peak.Usage.TotalTokens() {
			peak = m
		}
		if m.Usage.TotalTokens() < off.Usage.TotalTokens() {
			off = m
		}
	}
	a.PeakHour, a.OffPeakHour = peak.Hour, off.Hour
	return a
}

// isoWeek lists weekdays Monday first
var isoWeek = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func analyzeDayOfWeek(sessions []aggregator.SessionBucket) DayOfWeekAnalysis {
	var a DayOfWeekAnalysis
	byDay := make(map[time.Weekday]*model.TokenUsage)
	var weekend, weekday int64
	for _, s := range sessions {
		d := s.LastActivity.UTC().Weekday()
		u, ok := byDay[d]
		if !ok {
			u = &model.TokenUsage{}
			byDay[d] = u
		}
		u.Add(s.Usage)
		if d == time.Saturday || d == time.Sunday {
			weekend += s.Usage.TotalTokens()
		} else {
			weekday += s.Usage.TotalTokens()
		}
	}

	a.Daily = []WeekdayUsage{}
	for _, d := range isoWeek {
		if u, ok := byDay[d]; ok {
			a.Daily = append(a.Daily, WeekdayUsage{Day: d.String(), Usage: *u})
		}
	}
	if weekday > 0 {
		a.WeekendVsWeekdayRatio = float64(weekend) / float64(weekday)
	}
	if len(a.Daily) == 0 {
		return a
	}

	most, least := a.Daily[0], a.Daily[0]
	for _, d := range a.Daily[1:] {
		if d.Usage.TotalTokens() > most.Usage.TotalTokens() {
			most = d
		}
		if d.Usage.TotalTokens() < least.Usage.TotalTokens() {
			least = d
		}
	}
	a.MostActiveDay, a.LeastActiveDay = most.Day, least.Day
	return a
}

func sessionInfo(s aggregator.SessionBucket) SessionInfo {
	return SessionInfo{
		Path:         s.ID,
		DurationSecs: s.Duration().Seconds(),
		Tokens:       s.Usage.TotalTokens(),
		Cost:         s.Usage.TotalCost,
	}
}

// add counts a duration in its bucket
func (d *DurationDistribution) add(dur time.Duration) {
	switch minutes := dur.Minutes(); {
	case minutes < 5:
		d.Under5Min++
	case minutes < 30:
		d.Min5To30++
	case minutes < 60:
		d.Min30To60++
	case minutes < 180:
		d.Hour1To3++
	default:
		d.Over3Hours++
	}
}

// analyzeDurations uses last minus first activity; single-event sessions
// have zero duration
func analyzeDurations(sessions []aggregator.SessionBucket) DurationAnalysis {
	var a DurationAnalysis
	if len(sessions) == 0 {
		return a
	}

	longest, shortest := sessions[0], sessions[0]
	var total time.Duration
	for _, s := range sessions {
		d := s.Duration()
		total += d
		a.Distribution.add(d)
		if d > longest.Duration() {
			longest = s
		}
		if d < shortest.Duration() {
			shortest = s
		}
	}
	a.AvgSessionDuration = total / time.Duration(len(sessions))
	a.AvgDurationSecs = a.AvgSessionDuration.Seconds()
	a.Longest = sessionInfo(longest)
	a.Shortest = sessionInfo(shortest)
	return a
}

// analyzeFrequency counts sessions per UTC date of last activity. The current
// streak is zero unless the last active date is today or yesterday.
func analyzeFrequency(sessions []aggregator.SessionBucket, now time.Time) FrequencyAnalysis {
	var a FrequencyAnalysis
	if len(sessions) == 0 {
		return a
	}

	dates := lo.Uniq(lo.Map(sessions, func(s aggregator.SessionBucket, _ int) time.Time {
		return utcDay(s.LastActivity)
	}))
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	a.DaysWithUsage = len(dates)

	longest, current := 1, 1
	for i := 1; i < len(dates); i++ {
		if dates[i].Sub(dates[i-1]) == 24*time.Hour {
			current++
			longest = max(longest, current)
		} else {
			current = 1
		}
	}
	a.LongestStreak = longest
	if utcDay(now).Sub(dates[len(dates)-1]) <= 24*time.Hour {
		a.CurrentStreak = current
	}

	span := dates[len(dates)-1].Sub(dates[0]).Hours()/24 + 1
	a.SessionsPerDay = float64(len(sessions)) / span
	a.SessionsPerWeek = a.SessionsPerDay * 7
	a.AvgSessionsPerActiveDay = float64(len(sessions)) / float64(a.DaysWithUsage)
	return a
}

func tokensPerDollar(s SessionInfo) float64 {
	if s.Cost <= 0 {
		return 0
	}
	return float64(s.Tokens) / s.Cost
}

// analyzeCostEfficiency ranks sessions with tokens. The least efficient
// session is chosen among sessions with a cost and falls back to the most
// expensive one.
func analyzeCostEfficiency(sessions []aggregator.SessionBucket, threshold float64) CostEfficiencyAnalysis {
	a := CostEfficiencyAnalysis{CostThreshold: threshold, SessionsAboveThreshold: []SessionInfo{}}

	infos := lo.FilterMap(sessions, func(s aggregator.SessionBucket, _ int) (SessionInfo, bool) {
		return sessionInfo(s), s.Usage.TotalTokens() > 0
	})
	if len(infos) == 0 {
		return a
	}

	a.MostExpensive, a.MostEfficient = infos[0], infos[0]
	var least *SessionInfo
	for i, s := range infos {
		if s.Cost > a.MostExpensive.Cost {
			a.MostExpensive = s
		}
		if tokensPerDollar(s) > tokensPerDollar(a.MostEfficient) {
			a.MostEfficient = s
		}
		if s.Cost > 0 && (least == nil || tokensPerDollar(s) < tokensPerDollar(*least)) {
			least = &infos[i]
		}
		if s.Cost > threshold {
			a.SessionsAboveThreshold = append(a.SessionsAboveThreshold, s)
		}
	}
	a.LeastEfficient = a.MostExpensive
	if least != nil {
		a.LeastEfficient = *least
	}
	return a
}

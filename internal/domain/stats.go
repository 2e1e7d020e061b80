package domain

// DecisionStats: сводка по журналу действий для дашборда консоли.
type DecisionStats struct {
	TotalDecisions  int64            `json:"total_decisions"`
	DeniedDecisions int64            `json:"denied_decisions"`
	DenyRatio       float64          `json:"deny_ratio"`
	TopReasons      map[string]int64 `json:"top_reasons"`
	HourlyActivity  []ActivityPoint  `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

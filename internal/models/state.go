package models

// Phase is a step of the daily negotiation.
type Phase string

const (
	PhaseAwaitingTasks  Phase = "awaiting_tasks"
	PhaseQuestioning    Phase = "questioning"
	PhaseResearching    Phase = "researching"
	PhaseTrendSelection Phase = "trend_selection"
	PhaseTrendFetch     Phase = "trend_fetch"
	PhaseAnalysis       Phase = "analysis"
	PhaseDeciding       Phase = "deciding"
	PhaseReviewing      Phase = "reviewing"
	PhaseRevising       Phase = "revising"
	PhaseApproved       Phase = "approved"
	PhaseExhausted      Phase = "exhausted"
)

// Terminal reports whether no further transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseApproved || p == PhaseExhausted
}

// ReviewDecision is the reviewer's verdict on a recommendation.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionRevise  ReviewDecision = "revise"
)

// Review is a scored evaluation of a recommendation.
type Review struct {
	Score    int            `json:"score"`
	Decision ReviewDecision `json:"decision"`
	Feedback string         `json:"feedback"`
}

// NegotiationState accumulates the artifacts of one trading day.
type NegotiationState struct {
	SessionID string `json:"session_id"`
	TradeDate string `json:"trade_date"`
	Round     int    `json:"round"`
	Phase     Phase  `json:"phase"`

	PerformanceReport string       `json:"performance_report"`
	Tasks             string       `json:"tasks"`
	MarketQuestions   string       `json:"market_questions"`
	MarketInfo        string       `json:"market_info"`
	StockTrendRequest string       `json:"stock_trend_request"`
	PriceTrends       []PriceTrend `json:"price_trends"`
	AnalysisReport    string       `json:"analysis_report"`
	Recommendation    string       `json:"recommendation"`
	Review            *Review      `json:"review,omitempty"`

	MeetingNotes []string `json:"meeting_notes"`
}

// Feedback returns the reviewer's feedback for the current round, if any.
func (s *NegotiationState) Feedback() string {
	if s.Review == nil {
		return ""
	}
	return s.Review.Feedback
}

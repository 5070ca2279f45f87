package dto

// ReconcileItem is one offline capture queued by a disconnected client.
// IdentityID and Name are the client's claim; the face still decides, and a
// confident match of someone else fails the item with a mismatch.
type ReconcileItem struct {
	IdentityID string `json:"identity_id"`
	Name       string `json:"name"`
	Image      string `json:"image" binding:"required"`
	CapturedAt string `json:"captured_at"`
}

type ReconcileRequest struct {
	Items []ReconcileItem `json:"items" binding:"required"`
}

type AttendanceListResponse struct {
	Records []CheckinResponse `json:"records"`
	Total   int               `json:"total"`
}

type AttendanceSummaryResponse struct {
	Date     string `json:"date"`
	Checkins int    `json:"checkins"`
}

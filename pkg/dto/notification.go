package dto

type NotificationStatusResponse struct {
	Pending    int    `json:"pending"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	QueueDepth uint64 `json:"queue_depth"`
}

type NotificationRetryResponse struct {
	Requeued int `json:"requeued"`
}

package dto

// EnrollRequest registers one face sample for an identity. Image is the
// base64-encoded capture (a data-URL prefix is tolerated).
type EnrollRequest struct {
	IdentityID string `json:"identity_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Image      string `json:"image" binding:"required"`
}

type EnrollResponse struct {
	IdentityID    string `json:"identity_id"`
	Name          string `json:"name"`
	TemplateCount int    `json:"template_count"`
}

type IdentityResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Templates int    `json:"templates"`
	CreatedAt string `json:"created_at"`
}

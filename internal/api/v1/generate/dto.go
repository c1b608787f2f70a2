package generate

type GenerateRequest struct {
	UserImage      string `json:"userImage" binding:"required"`
	HairstyleImage string `json:"hairstyleImage" binding:"required"`
	Prompt         string `json:"prompt"`
}

type GenerateResponse struct {
	Output []string `json:"output"`
}

package dto

// CaptureResult is the response of a snapshot request.
type CaptureResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filepath,omitempty"`
	Error    string `json:"error,omitempty"`
}

// UploadResult is the response of a single-image inference request.
type UploadResult struct {
	Success    bool   `json:"success"`
	ResultURL  string `json:"result_url,omitempty"`
	Detections int    `json:"detections,omitempty"`
	Error      string `json:"error,omitempty"`
}

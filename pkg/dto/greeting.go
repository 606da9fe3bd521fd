package dto

type GreetRequest struct {
	Name string `json:"name"`
}

type GreetingResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Greeting  string `json:"greeting"`
	Timestamp string `json:"timestamp"`
}

type StatsResponse struct {
	TotalGreetings int64 `json:"totalGreetings"`
}

package maa

type runtimeData struct {
	Data     string `json:"data"`
	DataType string `json:"dataType"`
}

type snpRequest struct {
	Report      string      `json:"report"`
	RuntimeData runtimeData `json:"runtimeData"`
}

type tdxRequest struct {
	Quote       string      `json:"quote"`
	RuntimeData runtimeData `json:"runtimeData"`
}

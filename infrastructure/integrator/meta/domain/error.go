package metadomain

// ErrorResponse representa a estrutura de erro da API do Meta
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails contém os detalhes de erro da API do Meta
type ErrorDetails struct {
	Message      string      `json:"message"`
	Type         string      `json:"type"`
	Code         int         `json:"code"`
	ErrorSubcode int         `json:"error_subcode,omitempty"`
	FBTraceID    string      `json:"fbtrace_id"`
	ErrorData    interface{} `json:"error_data,omitempty"`
}

// IsRateLimited verifica se o erro indica limite de requisições atingido.
// Os códigos 4, 17 e 32 representam throttling nas respostas da API do Meta.
func (e *ErrorResponse) IsRateLimited() bool {
	return e.Error.Code == 4 || e.Error.Code == 17 || e.Error.Code == 32
}

// IsAuthError verifica se o erro é de token inválido ou expirado.
// O código 190 representa "token expirado" nas respostas da API do Meta.
func (e *ErrorResponse) IsAuthError() bool {
	return e.Error.Code == 190 || e.Error.Type == "OAuthException"
}

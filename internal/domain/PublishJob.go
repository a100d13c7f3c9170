package domain

import (
	"time"
)

// Platform identifica a plataforma de anúncios externa
type Platform string

const (
	PlatformMeta   Platform = "meta"
	PlatformGoogle Platform = "google"
	PlatformTikTok Platform = "tiktok"
)

// IsValid verifica se a plataforma é conhecida
func (p Platform) IsValid() bool {
	switch p {
	case PlatformMeta, PlatformGoogle, PlatformTikTok:
		return true
	}
	return false
}

// JobState representa o estado de um job de publicação
type JobState string

const (
	JobStateQueued           JobState = "queued"
	JobStateUploadingMedia   JobState = "uploading_media"
	JobStateCreatingCreative JobState = "creating_creative"
	JobStateCreatingAd       JobState = "creating_ad"
	JobStateCompleted        JobState = "completed"
	JobStateFailed           JobState = "failed"
	JobStateCancelled        JobState = "cancelled"
)

// IsTerminal indica se o estado é terminal (completed, failed ou cancelled)
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// StepStatus representa o status de um passo do workflow de publicação
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"

	// StepStatusUncertain indica que todas as tentativas expiraram sem resposta
	// conclusiva da plataforma. O resultado real é desconhecido e precisa de
	// reconciliação manual, nunca é assumido como sucesso ou falha.
	StepStatusUncertain StepStatus = "uncertain"
)

// Nomes dos passos do workflow. A ordem é fixa e cada passo corresponde ao
// estado homônimo do job enquanto está em execução.
const (
	StepUploadingMedia   = "uploading_media"
	StepCreatingCreative = "creating_creative"
	StepCreatingAd       = "creating_ad"
)

// JobStep registra a execução de um passo atômico na plataforma externa
type JobStep struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	ExternalID string     `json:"external_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CreativeSpec descreve o criativo a ser registrado na plataforma
type CreativeSpec struct {
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	CallToAction *string `json:"call_to_action,omitempty"`
}

// PublishInput é a entrada imutável de um job de publicação
type PublishInput struct {
	CampaignID string       `json:"campaign_id"`
	AdSetID    string       `json:"ad_set_id"`
	MediaPath  string       `json:"media_path"`
	Creative   CreativeSpec `json:"creative"`
	Name       string       `json:"name"`
}

// PublishJob representa uma tentativa de publicação de um anúncio em uma
// plataforma. O job é criado pelo publish request e mutado apenas pelo
// workflow engine (single-writer por job, garantido pelo claim no repositório).
type PublishJob struct {
	ID          string       `json:"id"`
	Platform    Platform     `json:"platform"`
	State       JobState     `json:"state"`
	Steps       []JobStep    `json:"steps"`
	Input       PublishInput `json:"input"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// NewJobSteps cria a sequência de passos pendentes de um job novo
func NewJobSteps() []JobStep {
	return []JobStep{
		{Name: StepUploadingMedia, Status: StepStatusPending},
		{Name: StepCreatingCreative, Status: StepStatusPending},
		{Name: StepCreatingAd, Status: StepStatusPending},
	}
}

// Step retorna o ponteiro para o passo com o nome informado
func (j *PublishJob) Step(name string) *JobStep {
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i]
		}
	}
	return nil
}

// FirstPendingStep retorna o primeiro passo ainda não sucedido. Passos já
// sucedidos nunca são reexecutados (retomada idempotente).
func (j *PublishJob) FirstPendingStep() *JobStep {
	for i := range j.Steps {
		if j.Steps[i].Status != StepStatusSucceeded {
			return &j.Steps[i]
		}
	}
	return nil
}

// AdExternalID retorna o ID externo do anúncio criado, se houver
func (j *PublishJob) AdExternalID() string {
	if step := j.Step(StepCreatingAd); step != nil {
		return step.ExternalID
	}
	return ""
}

// StateForStep mapeia o nome de um passo para o estado do job correspondente
func StateForStep(name string) JobState {
	switch name {
	case StepUploadingMedia:
		return JobStateUploadingMedia
	case StepCreatingCreative:
		return JobStateCreatingCreative
	case StepCreatingAd:
		return JobStateCreatingAd
	}
	return JobStateQueued
}

// JobFilter define os filtros de listagem de jobs para a API de status
type JobFilter struct {
	States   []JobState
	Platform *Platform
	Limit    int
}

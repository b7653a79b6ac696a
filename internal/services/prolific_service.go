package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/secrets"
	"gorm.io/gorm"
)

// StudyParams are the researcher-provided fields for a new Prolific study
type StudyParams struct {
	Name                    string        `json:"name"`
	Description             string        `json:"description"`
	EstimatedCompletionTime int           `json:"estimated_completion_time"`
	Reward                  int           `json:"reward"`
	TotalAvailablePlaces    int           `json:"total_available_places"`
	DeviceCompatibility     []string      `json:"device_compatibility"`
	PeripheralRequirements  []string      `json:"peripheral_requirements"`
	EligibilityRequirements []interface{} `json:"eligibility_requirements"`
}

// CreateStudyResult is returned after a study is created upstream
type CreateStudyResult struct {
	ProlificStudyID      string `json:"prolific_study_id"`
	Status               string `json:"status"`
	StudyURL             string `json:"study_url"`
	CompletionCode       string `json:"completion_code"`
	ProlificDashboardURL string `json:"prolific_dashboard_url"`
}

// ProlificService drives the external panel sub-state of an experiment:
// draft -> published -> completed. Each transition mirrors the accepted
// upstream outcome onto the local status field; there is no reconciliation
// loop if upstream state drifts.
type ProlificService struct {
	DB        *gorm.DB
	Client    *ProlificClient
	Cipher    secrets.Cipher
	PublicURL string
}

// LinkAccount validates a personal access token against Prolific and stores
// it encrypted together with the workspace id.
func (s *ProlificService) LinkAccount(ctx context.Context, userID, token string) (*ProlificUser, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: Prolific API token is required", ErrValidation)
	}

	pu, err := s.Client.Me(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: token rejected by Prolific: %v", ErrValidation, err)
	}

	encrypted, err := s.Cipher.Encrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt token: %w", err)
	}

	err = s.DB.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"prolific_api_token":    encrypted,
			"prolific_workspace_id": pu.WorkspaceID,
		}).Error
	if err != nil {
		return nil, err
	}
	return pu, nil
}

// UnlinkAccount removes the stored Prolific credential
func (s *ProlificService) UnlinkAccount(userID string) error {
	return s.DB.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"prolific_api_token":    "",
			"prolific_workspace_id": "",
		}).Error
}

// token loads and decrypts the caller's Prolific token
func (s *ProlificService) token(userID string) (*models.User, string, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	if !user.IsProlificLinked() {
		return nil, "", fmt.Errorf("%w: Prolific account not linked", ErrConflict)
	}

	token, err := s.Cipher.Decrypt(user.ProlificAPIToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt Prolific token: %w", err)
	}
	return &user, token, nil
}

// experiment loads an experiment owned by the caller
func (s *ProlificService) experiment(userID, experimentID string) (*models.Experiment, error) {
	var exp models.Experiment
	err := s.DB.Where("id = ? AND user_id = ?", experimentID, userID).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exp, nil
}

// CreateStudy creates a draft study on Prolific for a live experiment. The
// callback URL embeds the experiment id plus Prolific's participant and
// session placeholders, substituted by the panel at recruitment time.
func (s *ProlificService) CreateStudy(ctx context.Context, userID, experimentID string, params StudyParams) (*CreateStudyResult, error) {
	if params.Name == "" || params.Description == "" {
		return nil, fmt.Errorf("%w: study name and description are required", ErrValidation)
	}
	if params.EstimatedCompletionTime < 1 || params.TotalAvailablePlaces < 1 || params.Reward < 0 {
		return nil, fmt.Errorf("%w: completion time, reward and places must be valid", ErrValidation)
	}

	exp, err := s.experiment(userID, experimentID)
	if err != nil {
		return nil, err
	}
	if !exp.Live {
		return nil, fmt.Errorf("%w: experiment must be live before posting to Prolific", ErrNotLive)
	}

	user, token, err := s.token(userID)
	if err != nil {
		return nil, err
	}

	studyURL := fmt.Sprintf(
		"%s/run/%s?PROLIFIC_PID={{%%PROLIFIC_PID%%}}&STUDY_ID={{%%STUDY_ID%%}}&SESSION_ID={{%%SESSION_ID%%}}",
		s.PublicURL, exp.ID,
	)

	deviceCompat := params.DeviceCompatibility
	if len(deviceCompat) == 0 {
		deviceCompat = []string{"desktop", "tablet", "mobile"}
	}
	peripherals := params.PeripheralRequirements
	if peripherals == nil {
		peripherals = []string{}
	}
	eligibility := params.EligibilityRequirements
	if eligibility == nil {
		eligibility = []interface{}{}
	}

	study, err := s.Client.CreateStudy(ctx, token, StudyRequest{
		Name:                    params.Name,
		Description:             params.Description,
		ExternalStudyURL:        studyURL,
		ProlificIDOption:        "url_parameters",
		EstimatedCompletionTime: params.EstimatedCompletionTime,
		Reward:                  params.Reward,
		TotalAvailablePlaces:    params.TotalAvailablePlaces,
		CompletionCode:          exp.CompletionCode,
		CompletionOption:        "code",
		DeviceCompatibility:     deviceCompat,
		PeripheralRequirements:  peripherals,
		EligibilityRequirements: eligibility,
	})
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(exp).Updates(map[string]interface{}{
		"prolific_study_id": study.ID,
		"prolific_status":   models.ProlificStatusDraft,
	}).Error
	if err != nil {
		return nil, err
	}

	return &CreateStudyResult{
		ProlificStudyID: study.ID,
		Status:          study.Status,
		StudyURL:        studyURL,
		CompletionCode:  exp.CompletionCode,
		ProlificDashboardURL: fmt.Sprintf(
			"https://app.prolific.com/researcher/workspaces/%s/studies/%s",
			user.ProlificWorkspaceID, study.ID,
		),
	}, nil
}

// PublishStudy transitions the study to published on Prolific and mirrors
// the status locally.
func (s *ProlificService) PublishStudy(ctx context.Context, userID, experimentID string) (*models.Experiment, error) {
	return s.transition(ctx, userID, experimentID, "PUBLISH", models.ProlificStatusPublished)
}

// StopStudy stops the study on Prolific and marks it completed locally
func (s *ProlificService) StopStudy(ctx context.Context, userID, experimentID string) (*models.Experiment, error) {
	return s.transition(ctx, userID, experimentID, "STOP", models.ProlificStatusCompleted)
}

func (s *ProlificService) transition(ctx context.Context, userID, experimentID, action, localStatus string) (*models.Experiment, error) {
	exp, err := s.experiment(userID, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.ProlificStudyID == "" {
		return nil, fmt.Errorf("%w: no Prolific study created for this experiment", ErrConflict)
	}

	_, token, err := s.token(userID)
	if err != nil {
		return nil, err
	}

	if err := s.Client.TransitionStudy(ctx, token, exp.ProlificStudyID, action); err != nil {
		return nil, err
	}

	if err := s.DB.Model(exp).Update("prolific_status", localStatus).Error; err != nil {
		return nil, err
	}
	exp.ProlificStatus = localStatus
	return exp, nil
}

// StudyStatus proxies current study details from Prolific
func (s *ProlificService) StudyStatus(ctx context.Context, userID, experimentID string) (*models.Experiment, *ProlificStudy, error) {
	exp, err := s.experiment(userID, experimentID)
	if err != nil {
		return nil, nil, err
	}
	if exp.ProlificStudyID == "" {
		return exp, nil, nil
	}

	_, token, err := s.token(userID)
	if err != nil {
		return nil, nil, err
	}

	study, err := s.Client.GetStudy(ctx, token, exp.ProlificStudyID)
	if err != nil {
		return nil, nil, err
	}
	return exp, study, nil
}

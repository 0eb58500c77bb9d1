package domain

import "time"

// ImpactLevel описывает уровень влияния регуляторного обновления.
type ImpactLevel string

const (
	ImpactSignificant   ImpactLevel = "Significant"
	ImpactModerate      ImpactLevel = "Moderate"
	ImpactInformational ImpactLevel = "Informational"
)

// Priority возвращает числовой приоритет уровня для сортировки подсветок.
func (l ImpactLevel) Priority() int {
	switch l {
	case ImpactSignificant:
		return 3
	case ImpactModerate:
		return 2
	default:
		return 1
	}
}

// Update представляет нормализованное регуляторное обновление.
type Update struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title"`
	Summary             string      `json:"summary"`
	Authority           string      `json:"authority"`
	ImpactLevel         ImpactLevel `json:"impact_level"`
	Urgency             string      `json:"urgency"`
	BusinessImpactScore *float64    `json:"business_impact_score,omitempty"`
	Sectors             []string    `json:"sectors"`
	Tags                []string    `json:"tags"`
	PublishedDate       *time.Time  `json:"published_date"`
	URL                 string      `json:"url,omitempty"`
	Jurisdiction        string      `json:"jurisdiction,omitempty"`
	Source              string      `json:"source,omitempty"`
	ComplianceDeadline  *time.Time  `json:"compliance_deadline,omitempty"`
}

// UpdateRef хранит краткую ссылку на обновление внутри аннотации.
type UpdateRef struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Authority     string      `json:"authority"`
	ImpactLevel   ImpactLevel `json:"impact_level"`
	PublishedDate *time.Time  `json:"published_date"`
	URL           string      `json:"url,omitempty"`
}

// Ref строит краткую ссылку на обновление.
func (u Update) Ref() *UpdateRef {
	return &UpdateRef{
		ID:            u.ID,
		Title:         u.Title,
		Authority:     u.Authority,
		ImpactLevel:   u.ImpactLevel,
		PublishedDate: u.PublishedDate,
		URL:           u.URL,
	}
}

// ActionType описывает тип действия, заданного аннотацией.
type ActionType string

const (
	ActionFlag   ActionType = "flag"
	ActionAssign ActionType = "assign"
	ActionTask   ActionType = "task"
	ActionNote   ActionType = "note"
)

// Visibility аннотации.
type Visibility string

const (
	VisibilityTeam    Visibility = "team"
	VisibilityAll     Visibility = "all"
	VisibilityPrivate Visibility = "private"
)

// Annotation описывает заметку команды к обновлению. Ядро только читает аннотации.
type Annotation struct {
	ID              string         `json:"id"`
	UpdateID        string         `json:"update_id"`
	Author          string         `json:"author"`
	Visibility      Visibility     `json:"visibility"`
	Status          string         `json:"status"`
	Content         string         `json:"content"`
	Tags            []string       `json:"tags"`
	AssignedTo      []string       `json:"assigned_to"`
	LinkedResources []string       `json:"linked_resources"`
	Persona         string         `json:"persona,omitempty"`
	OriginPage      string         `json:"origin_page,omitempty"`
	ActionType      ActionType     `json:"action_type"`
	Priority        string         `json:"priority,omitempty"`
	ReportIncluded  bool           `json:"report_included"`
	Context         map[string]any `json:"context"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Update          *UpdateRef     `json:"update"`
}

// DateRange описывает окно выборки.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CountBy хранит счётчик по ключу.
type CountBy struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ImpactCounts хранит распределение по уровням влияния.
type ImpactCounts struct {
	Significant   int `json:"Significant"`
	Moderate      int `json:"Moderate"`
	Informational int `json:"Informational"`
}

// DatasetStats содержит агрегаты по текущему окну.
type DatasetStats struct {
	TotalUpdates int          `json:"totalUpdates"`
	ByAuthority  []CountBy    `json:"byAuthority"`
	ByImpact     ImpactCounts `json:"byImpact"`
	BySector     []CountBy    `json:"bySector"`
}

// TimelinePoint хранит количество обновлений за день.
type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AnnotationTotals считает аннотации по типам действий.
type AnnotationTotals struct {
	All         int `json:"all"`
	Flagged     int `json:"flagged"`
	Assignments int `json:"assignments"`
	Tasks       int `json:"tasks"`
	Notes       int `json:"notes"`
}

// AnnotationDigest представляет аннотацию кратко для промптов и шаблонов.
type AnnotationDigest struct {
	ID          string     `json:"id"`
	UpdateID    string     `json:"update_id"`
	UpdateTitle string     `json:"update_title,omitempty"`
	ActionType  ActionType `json:"action_type"`
	Author      string     `json:"author"`
	AssignedTo  []string   `json:"assigned_to"`
	Priority    string     `json:"priority,omitempty"`
	Persona     string     `json:"persona,omitempty"`
	Content     string     `json:"content"`
}

// AnnotationInsights содержит производные данные по аннотациям окна.
type AnnotationInsights struct {
	Totals           AnnotationTotals   `json:"totals"`
	ByPersona        []CountBy          `json:"byPersona"`
	ByOriginPage     []CountBy          `json:"byOriginPage"`
	Flagged          []AnnotationDigest `json:"flagged"`
	Assignments      []AnnotationDigest `json:"assignments"`
	Tasks            []AnnotationDigest `json:"tasks"`
	ReportCandidates []AnnotationDigest `json:"reportCandidates"`
}

// FirmContext описывает профиль фирмы, уточняющий промпты.
type FirmContext struct {
	Name                string   `json:"name,omitempty" yaml:"name"`
	Sectors             []string `json:"sectors,omitempty" yaml:"sectors"`
	Jurisdictions       []string `json:"jurisdictions,omitempty" yaml:"jurisdictions"`
	StrategicPriorities []string `json:"strategicPriorities,omitempty" yaml:"strategic_priorities"`
	Notes               string   `json:"notes,omitempty" yaml:"notes"`
}

// IsZero сообщает, что контекст не задан.
func (f *FirmContext) IsZero() bool {
	return f == nil || (f.Name == "" && len(f.Sectors) == 0 && len(f.Jurisdictions) == 0 && len(f.StrategicPriorities) == 0 && f.Notes == "")
}

// Dataset представляет нормализованную выборку для одного запуска. Строится заново на каждый запуск.
type Dataset struct {
	DateRange          DateRange          `json:"dateRange"`
	CurrentUpdates     []Update           `json:"currentUpdates"`
	PreviousUpdates    []Update           `json:"previousUpdates"`
	HistoryUpdates     []Update           `json:"historyUpdates"`
	HistoryTimeline    []TimelinePoint    `json:"historyTimeline"`
	Stats              DatasetStats       `json:"stats"`
	HighlightUpdates   []Update           `json:"highlightUpdates"`
	Annotations        []Annotation       `json:"annotations"`
	AnnotationInsights AnnotationInsights `json:"annotationInsights"`
	FirmContext        *FirmContext       `json:"firmContext"`
	PromptVersion      string             `json:"promptVersion"`
	SamplingWindowDays int                `json:"samplingWindowDays"`
}

package models

import "time"

// SubjectStatistics bundles descriptive statistics for one subject's scores.
type SubjectStatistics struct {
	SubjectID      string               `json:"subject_id"`
	SubjectName    string               `json:"subject_name"`
	ExamID         string               `json:"exam_id"`
	TotalScore     float64              `json:"total_score"`
	Count          int                  `json:"count"`
	Mean           float64              `json:"mean"`
	Median         float64              `json:"median"`
	Min            float64              `json:"min"`
	Max            float64              `json:"max"`
	StdDev         float64              `json:"std_dev"`
	Quantiles      map[string]float64   `json:"quantiles"`
	PassCount      int                  `json:"pass_count"`
	PassRate       float64              `json:"pass_rate"`
	GoodCount      int                  `json:"good_count"`
	GoodRate       float64              `json:"good_rate"`
	ExcellentCount int                  `json:"excellent_count"`
	ExcellentRate  float64              `json:"excellent_rate"`
	Distribution   []DistributionBucket `json:"distribution"`
}

// DistributionBucket is one segment of a score distribution.
type DistributionBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// StudentTotalRow is one student's summed result within a cohort ranking.
type StudentTotalRow struct {
	StudentID    string  `json:"student_id"`
	StudentName  string  `json:"student_name"`
	StudentCode  string  `json:"student_code"`
	Total        float64 `json:"total"`
	Average      float64 `json:"average"`
	SubjectCount int     `json:"subject_count"`
	Rank         int     `json:"rank"`
}

// ClassScoresAnalytics is the roster-aware class statistics payload.
type ClassScoresAnalytics struct {
	ClassID        string              `json:"class_id"`
	ClassName      string              `json:"class_name"`
	ExamID         string              `json:"exam_id"`
	StudentCount   int                 `json:"student_count"`
	ScoredCount    int                 `json:"scored_count"`
	CompletionRate float64             `json:"completion_rate"`
	Subjects       []SubjectStatistics `json:"subjects"`
	Overall        *SubjectStatistics  `json:"overall,omitempty"`
	Totals         []StudentTotalRow   `json:"totals"`
	TopStudents    []StudentTotalRow   `json:"top_students"`
}

// HistoricalMetricPoint is one exam's metric value; nil when the exam has no
// scores so every series stays index-aligned with ExamLabels.
type HistoricalMetricPoint struct {
	ExamID string   `json:"exam_id"`
	Value  *float64 `json:"value"`
}

// HistoricalAnalytics is a per-exam metric series for a class.
type HistoricalAnalytics struct {
	ClassID    string                  `json:"class_id"`
	SubjectID  string                  `json:"subject_id,omitempty"`
	ExamLabels []string                `json:"exam_labels"`
	ExamDates  []time.Time             `json:"exam_dates"`
	Mean       []HistoricalMetricPoint `json:"mean"`
	PassRate   []HistoricalMetricPoint `json:"pass_rate"`
	Excellent  []HistoricalMetricPoint `json:"excellent_rate"`
	Max        []HistoricalMetricPoint `json:"max"`
	Min        []HistoricalMetricPoint `json:"min"`
}

// SubjectTrendSeries is one subject's score series across exams.
type SubjectTrendSeries struct {
	SubjectID   string     `json:"subject_id"`
	SubjectName string     `json:"subject_name"`
	Scores      []*float64 `json:"scores"`
}

// SubjectRank is a student's rank within a cohort for one subject.
type SubjectRank struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Rank        int     `json:"rank"`
	CohortSize  int     `json:"cohort_size"`
	Percentile  float64 `json:"percentile"`
}

// RankHistoryPoint is the student's total-score class rank for one exam.
type RankHistoryPoint struct {
	ExamID     string `json:"exam_id"`
	ExamLabel  string `json:"exam_label"`
	Rank       int    `json:"rank"`
	CohortSize int    `json:"cohort_size"`
}

// RadarPoint is the student's latest score per subject for radar charts.
type RadarPoint struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Score       float64 `json:"score"`
	TotalScore  float64 `json:"total_score"`
}

// StudentTrendAnalytics is the per-student performance trend payload.
type StudentTrendAnalytics struct {
	StudentID   string               `json:"student_id"`
	StudentName string               `json:"student_name"`
	ExamLabels  []string             `json:"exam_labels"`
	Series      []SubjectTrendSeries `json:"series"`
	Radar       []RadarPoint         `json:"radar"`
	GradeRanks  []SubjectRank        `json:"grade_ranks"`
	ClassRank   *SubjectRank         `json:"class_rank,omitempty"`
	GradeRank   *SubjectRank         `json:"grade_rank,omitempty"`
	RankHistory []RankHistoryPoint   `json:"rank_history"`
}

// StudentSubjectAggregate summarises one subject for a student.
type StudentSubjectAggregate struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Count       int     `json:"count"`
	Mean        float64 `json:"mean"`
	Max         float64 `json:"max"`
	Min         float64 `json:"min"`
	First       float64 `json:"first"`
	Last        float64 `json:"last"`
	Progress    float64 `json:"progress"`
}

// StudentStatisticsAnalytics is the per-student aggregate payload.
type StudentStatisticsAnalytics struct {
	StudentID string                    `json:"student_id"`
	ExamID    string                    `json:"exam_id,omitempty"`
	Subjects  []StudentSubjectAggregate `json:"subjects"`
	Overall   *SubjectStatistics        `json:"overall,omitempty"`
}

// ComparativeTarget is one class or grade compared side by side.
type ComparativeTarget struct {
	TargetID      string               `json:"target_id"`
	TargetName    string               `json:"target_name"`
	Count         int                  `json:"count"`
	Mean          float64              `json:"mean"`
	PassRate      float64              `json:"pass_rate"`
	ExcellentRate float64              `json:"excellent_rate"`
	Distribution  []DistributionBucket `json:"distribution"`
}

// ComparativeAnalytics compares classes or grades on one exam.
type ComparativeAnalytics struct {
	ExamID     string              `json:"exam_id"`
	TargetType string              `json:"target_type"`
	SubjectID  string              `json:"subject_id,omitempty"`
	Targets    []ComparativeTarget `json:"targets"`
}

// LevelBandCounts is a four-band split of a cohort by normalized average.
type LevelBandCounts struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Pass      int `json:"pass"`
	Fail      int `json:"fail"`
}

// ClassLevelDistribution is one class's band distribution plus progress.
type ClassLevelDistribution struct {
	ClassID       string          `json:"class_id"`
	ClassName     string          `json:"class_name"`
	StudentCount  int             `json:"student_count"`
	Bands         LevelBandCounts `json:"bands"`
	ProgressIndex *float64        `json:"progress_index,omitempty"`
}

// SystemMetrics is a lightweight snapshot of runtime instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// LevelDistributionAnalytics is the grade-wide level distribution payload.
type LevelDistributionAnalytics struct {
	ExamID         string                   `json:"exam_id"`
	GradeID        string                   `json:"grade_id"`
	PreviousExamID string                   `json:"previous_exam_id,omitempty"`
	Classes        []ClassLevelDistribution `json:"classes"`
	GradeBenchmark LevelBandCounts          `json:"grade_benchmark"`
	MostImproved   []string                 `json:"most_improved"`
}

package model

import "time"

type FeedbackRecord struct {
	FeedbackID      uint      `gorm:"column:FEEDBACK_ID;primaryKey;autoIncrement" json:"feedback_id"`
	HistoryOfChat   *string   `gorm:"column:HISTORY_OF_CHAT;type:text" json:"history_of_chat"`
	MoreInformation string    `gorm:"column:MORE_INFORMATION;type:text" json:"more_information"`
	Rating          *int      `gorm:"column:RATING" json:"rating,omitempty"`
	FeedbackGivenOn time.Time `gorm:"column:FEEDBACK_GIVEN_ON;autoCreateTime" json:"feedback_given_on"`
}

func (FeedbackRecord) TableName() string {
	return "FEEDBACK"
}

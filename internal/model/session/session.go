package session

import "time"

// DefaultGoal 未选择学习目标时使用的默认分桶。
const DefaultGoal = "general"

// Session 表示一次逻辑会话，与具体网络连接无关。
type Session struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	GoalID    string    `json:"goalId"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

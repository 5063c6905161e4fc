package order

// Status 订单状态
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED" // 终态
)

// Action 状态流转动作
type Action string

const (
	ActionPay      Action = "pay"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// transitions (当前状态, 动作) -> 目标状态；表中没有的组合即为非法流转
var transitions = map[Status]map[Action]Status{
	StatusCreated: {
		ActionPay:    StatusPaid,
		ActionCancel: StatusCanceled,
	},
	StatusPaid: {
		ActionShip:   StatusShipped,
		ActionCancel: StatusCanceled,
	},
	StatusShipped: {
		ActionComplete: StatusCompleted,
	},
	StatusCompleted: {},
	StatusCanceled:  {},
}

// targets 每个动作的目标状态
var targets = map[Action]Status{
	ActionPay:      StatusPaid,
	ActionShip:     StatusShipped,
	ActionComplete: StatusCompleted,
	ActionCancel:   StatusCanceled,
}

// Next 返回 (current, a) 的目标状态，ok=false 表示状态冲突
func Next(current Status, a Action) (Status, bool) {
	to, ok := transitions[current][a]
	return to, ok
}

// Valid 判断是否为已知动作
func (a Action) Valid() bool {
	_, ok := targets[a]
	return ok
}

// Target 动作的目标状态
func (a Action) Target() Status {
	return targets[a]
}

// Sources 允许执行该动作的来源状态，用于条件更新 WHERE status IN (...)
func (a Action) Sources() []Status {
	var out []Status
	for _, from := range []Status{StatusCreated, StatusPaid, StatusShipped, StatusCompleted, StatusCanceled} {
		if _, ok := transitions[from][a]; ok {
			out = append(out, from)
		}
	}
	return out
}

// ActionFor 根据目标状态找到对应动作（兼容 PATCH ?status= 的写法）
func ActionFor(target Status) (Action, bool) {
	for a, to := range targets {
		if to == target {
			return a, true
		}
	}
	return "", false
}

// Valid 判断是否为已知状态
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

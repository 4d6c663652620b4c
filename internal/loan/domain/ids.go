package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// idSequence 业务单据编号序列。初始值随机，同一生成任务内单调递增，
// 保证同种子下编号序列可复现。
type idSequence struct {
	next int
}

func newIDSequence(rng *rand.Rand) *idSequence {
	return &idSequence{next: 10000 + rng.Intn(90000)}
}

func (s *idSequence) Next() int {
	s.next++
	return s.next
}

func applicationID(date time.Time, seq int) string {
	return fmt.Sprintf("LOAN-%s-%05d", date.Format("20060102"), seq)
}

func loanID(date time.Time, seq int) string {
	return fmt.Sprintf("LOAN-%s-%05d", date.Format("20060102"), seq)
}

func decisionID(date time.Time, rng *rand.Rand) string {
	return fmt.Sprintf("DEC-%s-%04d", date.Format("20060102"), 1000+rng.Intn(9000))
}

func flowID(date time.Time, rng *rand.Rand) string {
	return fmt.Sprintf("APF-%s-%04d", date.Format("20060102"), 1000+rng.Intn(9000))
}

func stepID(appID string, index int) string {
	return fmt.Sprintf("STEP-%s-%02d", appID, index)
}

func paymentID(loanID string, period int) string {
	return fmt.Sprintf("PAY-%s-%03d", loanID, period)
}

func eventID(appID string, index int) string {
	return fmt.Sprintf("EVT-%s-%03d", appID, index)
}

func rejectionCode(rng *rand.Rand) string {
	return fmt.Sprintf("REJ-%03d", 100+rng.Intn(900))
}

func accountID(rng *rand.Rand) string {
	return fmt.Sprintf("ACC-%06d", 100000+rng.Intn(900000))
}

func assessorID(rng *rand.Rand) string {
	return fmt.Sprintf("RA-%04d", 1000+rng.Intn(9000))
}

func committeeMemberID(rng *rand.Rand) string {
	return fmt.Sprintf("COM-%03d", 100+rng.Intn(900))
}

func overdueReportID(loanID string, date time.Time) string {
	return fmt.Sprintf("OVD-%s-%s", loanID, date.Format("20060102"))
}

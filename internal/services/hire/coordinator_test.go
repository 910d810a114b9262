package hire

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gigflow_backend/internal/events"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/testutil"
	"gigflow_backend/pkg/apperrors"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *gorm.DB) {
	t.Helper()
	st, db := testutil.NewTestStore(t)
	c := NewCoordinator(
		st,
		repositories.NewGigRepository(),
		repositories.NewBidRepository(),
		repositories.NewUserRepository(),
		repositories.NewOutboxRepository(5),
	)
	return c, db
}

func TestHire_Success(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	// 1. Подготовка: гиг и три ставки
	owner := testutil.CreateUser(t, db, "owner")
	f1 := testutil.CreateUser(t, db, "alice")
	f2 := testutil.CreateUser(t, db, "bob")
	f3 := testutil.CreateUser(t, db, "carol")
	gig := testutil.CreateGig(t, db, owner.ID, "Landing page")
	b1 := testutil.CreateBid(t, db, gig.ID, f1.ID, 100)
	b2 := testutil.CreateBid(t, db, gig.ID, f2.ID, 120)
	b3 := testutil.CreateBid(t, db, gig.ID, f3.ID, 90)

	// 2. Найм
	res, err := c.Hire(ctx, b2.ID, owner.ID)
	require.NoError(t, err)

	// 3. Результат
	assert.Equal(t, models.BidStatusHired, res.Bid.Status)
	assert.Equal(t, models.GigStatusAssigned, res.Gig.Status)
	assert.Equal(t, 2, res.RejectedBidsCount)
	assert.Len(t, res.RejectedBids, 2)
	assert.NotEmpty(t, res.EventID)

	// 4. Состояние в базе
	assert.Equal(t, models.BidStatusRejected, testutil.ReloadBid(t, db, b1.ID).Status)
	assert.Equal(t, models.BidStatusHired, testutil.ReloadBid(t, db, b2.ID).Status)
	assert.Equal(t, models.BidStatusRejected, testutil.ReloadBid(t, db, b3.ID).Status)

	reloaded := testutil.ReloadGig(t, db, gig.ID)
	assert.Equal(t, models.GigStatusAssigned, reloaded.Status)
	assert.Equal(t, gig.Version+1, reloaded.Version)

	// 5. Событие HIRED со снимком
	var event models.OutboxEvent
	require.NoError(t, db.Where("id = ?", res.EventID).Take(&event).Error)
	assert.Equal(t, events.TopicBidHired, event.Topic)
	assert.Equal(t, gig.ID, event.AggregateID)

	var payload events.HirePayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, b2.ID, payload.Bid.ID)
	assert.Equal(t, f2.Email, payload.Freelancer.Email)
	assert.Equal(t, owner.ID, payload.Client.ID)
	assert.Equal(t, "Landing page", payload.Gig.Title)
	assert.Equal(t, 2, payload.RejectedBidsCount)
	assert.Len(t, payload.RejectedBidders, 2)

	t.Logf("НАЙМ: Ставка %s нанята, отклонено %d - Успешно.", b2.ID, res.RejectedBidsCount)
}

func TestHire_ConcurrentHiresExactlyOneWins(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	const k = 8

	owner := testutil.CreateUser(t, db, "owner")
	gig := testutil.CreateGig(t, db, owner.ID, "Race")

	bids := make([]*models.Bid, k)
	for i := range bids {
		f := testutil.CreateUser(t, db, "freelancer")
		bids[i] = testutil.CreateBid(t, db, gig.ID, f.ID, float64(100+i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
		conflicts int
	)
	start := make(chan struct{})
	for _, b := range bids {
		wg.Add(1)
		go func(bidID string) {
			defer wg.Done()
			<-start
			res, err := c.Hire(ctx, bidID, owner.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes = append(successes, res.Bid.ID)
				return
			}
			if apperrors.KindOf(err) == apperrors.KindConflict {
				conflicts++
			}
		}(b.ID)
	}
	close(start)
	wg.Wait()

	require.Len(t, successes, 1, "Должен победить ровно один найм")
	assert.Equal(t, k-1, conflicts)

	bidRepo := repositories.NewBidRepository()
	hired, err := bidRepo.CountByGigAndStatus(db, gig.ID, models.BidStatusHired)
	require.NoError(t, err)
	rejected, err := bidRepo.CountByGigAndStatus(db, gig.ID, models.BidStatusRejected)
	require.NoError(t, err)
	pending, err := bidRepo.CountByGigAndStatus(db, gig.ID, models.BidStatusPending)
	require.NoError(t, err)

	assert.EqualValues(t, 1, hired)
	assert.EqualValues(t, k-1, rejected)
	assert.EqualValues(t, 0, pending)
	assert.EqualValues(t, 1, testutil.CountOutbox(t, db, events.TopicBidHired))

	t.Logf("ГОНКА: %d конкурентных наймов, победитель %s - Успешно.", k, successes[0])
}

func TestHire_DoesNotTouchOtherGigs(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	f1 := testutil.CreateUser(t, db, "alice")
	f2 := testutil.CreateUser(t, db, "bob")

	gigA := testutil.CreateGig(t, db, owner.ID, "A")
	gigB := testutil.CreateGig(t, db, owner.ID, "B")
	bidA := testutil.CreateBid(t, db, gigA.ID, f1.ID, 10)
	bidB1 := testutil.CreateBid(t, db, gigB.ID, f1.ID, 10)
	bidB2 := testutil.CreateBid(t, db, gigB.ID, f2.ID, 20)

	res, err := c.Hire(ctx, bidA.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RejectedBidsCount)

	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, bidB1.ID).Status)
	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, bidB2.ID).Status)
	assert.Equal(t, models.GigStatusOpen, testutil.ReloadGig(t, db, gigB.ID).Status)
}

func TestHire_SecondHireIsConflict(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	f1 := testutil.CreateUser(t, db, "alice")
	f2 := testutil.CreateUser(t, db, "bob")
	gig := testutil.CreateGig(t, db, owner.ID, "Once")
	b1 := testutil.CreateBid(t, db, gig.ID, f1.ID, 10)
	b2 := testutil.CreateBid(t, db, gig.ID, f2.ID, 20)

	_, err := c.Hire(ctx, b1.ID, owner.ID)
	require.NoError(t, err)

	// повтор того же найма
	_, err = c.Hire(ctx, b1.ID, owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrGigAlreadyAssigned)

	// найм отклоненной ставки
	_, err = c.Hire(ctx, b2.ID, owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrGigAlreadyAssigned)

	assert.Equal(t, models.BidStatusHired, testutil.ReloadBid(t, db, b1.ID).Status)
	assert.Equal(t, models.BidStatusRejected, testutil.ReloadBid(t, db, b2.ID).Status)
	assert.EqualValues(t, 1, testutil.CountOutbox(t, db, events.TopicBidHired))
}

func TestHire_OnlyOwnerCanHire(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	stranger := testutil.CreateUser(t, db, "stranger")
	f1 := testutil.CreateUser(t, db, "alice")
	gig := testutil.CreateGig(t, db, owner.ID, "Mine")
	b1 := testutil.CreateBid(t, db, gig.ID, f1.ID, 10)

	_, err := c.Hire(ctx, b1.ID, stranger.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotGigOwner)

	// фрилансер тоже не может нанять сам себя
	_, err = c.Hire(ctx, b1.ID, f1.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotGigOwner)

	// ни одной записи
	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, b1.ID).Status)
	reloaded := testutil.ReloadGig(t, db, gig.ID)
	assert.Equal(t, models.GigStatusOpen, reloaded.Status)
	assert.Equal(t, gig.Version, reloaded.Version)
	assert.EqualValues(t, 0, testutil.CountOutbox(t, db, events.TopicBidHired))
}

func TestHire_NotFound(t *testing.T) {
	c, db := newTestCoordinator(t)

	owner := testutil.CreateUser(t, db, "owner")

	_, err := c.Hire(context.Background(), "00000000-0000-0000-0000-000000000000", owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrBidNotFound)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

// Ставка B1 одного фрилансера нанята на гиге G1, его же ставка B2 на G2
// остается pending и может быть нанята отдельно.
func TestHire_SameFreelancerOnTwoGigs(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	owner1 := testutil.CreateUser(t, db, "owner1")
	owner2 := testutil.CreateUser(t, db, "owner2")
	f := testutil.CreateUser(t, db, "alice")
	g1 := testutil.CreateGig(t, db, owner1.ID, "G1")
	g2 := testutil.CreateGig(t, db, owner2.ID, "G2")
	b1 := testutil.CreateBid(t, db, g1.ID, f.ID, 10)
	b2 := testutil.CreateBid(t, db, g2.ID, f.ID, 20)

	_, err := c.Hire(ctx, b1.ID, owner1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, b2.ID).Status)

	_, err = c.Hire(ctx, b2.ID, owner2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusHired, testutil.ReloadBid(t, db, b2.ID).Status)
}

func TestHire_CancelledContextChangesNothing(t *testing.T) {
	c, db := newTestCoordinator(t)

	owner := testutil.CreateUser(t, db, "owner")
	f := testutil.CreateUser(t, db, "alice")
	gig := testutil.CreateGig(t, db, owner.ID, "Cancelled")
	b := testutil.CreateBid(t, db, gig.ID, f.ID, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Hire(ctx, b.ID, owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInfra, apperrors.KindOf(err))

	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, b.ID).Status)
	assert.Equal(t, models.GigStatusOpen, testutil.ReloadGig(t, db, gig.ID).Status)
}

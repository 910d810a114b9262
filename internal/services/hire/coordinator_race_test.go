package hire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gigflow_backend/internal/events"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/store"
	"gigflow_backend/internal/testutil"
	"gigflow_backend/pkg/apperrors"
)

// Обертки отдают снимок, прочитанный до коммита конкурента. На SQLite с
// одним соединением настоящие гонки идут строго по очереди, поэтому ветки
// CAS-промаха и изменившихся ставок воспроизводим через устаревшее чтение.

type staleGigRepo struct {
	repositories.GigRepository
	gig models.Gig
}

func (r *staleGigRepo) FindByID(db *gorm.DB, id string) (*models.Gig, error) {
	if id == r.gig.ID {
		g := r.gig
		return &g, nil
	}
	return r.GigRepository.FindByID(db, id)
}

type staleBidRepo struct {
	repositories.BidRepository
	bids         map[string]models.Bid
	extraPending []models.Bid
}

func (r *staleBidRepo) FindByID(db *gorm.DB, id string) (*models.Bid, error) {
	if b, ok := r.bids[id]; ok {
		return &b, nil
	}
	return r.BidRepository.FindByID(db, id)
}

func (r *staleBidRepo) FindPendingByGigForUpdate(db *gorm.DB, gigID string) ([]models.Bid, error) {
	pending, err := r.BidRepository.FindPendingByGigForUpdate(db, gigID)
	if err != nil {
		return nil, err
	}
	return append(pending, r.extraPending...), nil
}

func coordinatorWith(st *store.Store, gigRepo repositories.GigRepository, bidRepo repositories.BidRepository) *Coordinator {
	return NewCoordinator(st, gigRepo, bidRepo,
		repositories.NewUserRepository(),
		repositories.NewOutboxRepository(5),
	)
}

func TestHire_LoserMissesCompareAndSwap(t *testing.T) {
	// 1. Подготовка: оба найма прочитали открытый гиг
	st, db := testutil.NewTestStore(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	gig := testutil.CreateGig(t, db, owner.ID, "Race on CAS")
	b1 := testutil.CreateBid(t, db, gig.ID, alice.ID, 100)
	b2 := testutil.CreateBid(t, db, gig.ID, bob.ID, 120)

	gigBefore := *testutil.ReloadGig(t, db, gig.ID)
	b2Before := *testutil.ReloadBid(t, db, b2.ID)

	winner := coordinatorWith(st, repositories.NewGigRepository(), repositories.NewBidRepository())
	loser := coordinatorWith(st,
		&staleGigRepo{GigRepository: repositories.NewGigRepository(), gig: gigBefore},
		&staleBidRepo{BidRepository: repositories.NewBidRepository(), bids: map[string]models.Bid{b2.ID: b2Before}},
	)

	// 2. Победитель коммитит первым
	_, err := winner.Hire(ctx, b1.ID, owner.ID)
	require.NoError(t, err)

	// 3. Проигравший проходит проверки на старом снимке и упирается в CAS
	_, err = loser.Hire(ctx, b2.ID, owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrGigAlreadyAssigned)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// 4. Ни одной записи от проигравшего
	assert.Equal(t, models.BidStatusHired, testutil.ReloadBid(t, db, b1.ID).Status)
	assert.Equal(t, models.BidStatusRejected, testutil.ReloadBid(t, db, b2.ID).Status)
	reloaded := testutil.ReloadGig(t, db, gig.ID)
	assert.Equal(t, models.GigStatusAssigned, reloaded.Status)
	assert.Equal(t, gigBefore.Version+1, reloaded.Version)
	assert.EqualValues(t, 1, testutil.CountOutbox(t, db, events.TopicBidHired))

	t.Logf("CAS: проигравший получил Conflict без записей - Успешно.")
}

func TestHire_TargetBidWithdrawnAfterRead(t *testing.T) {
	// 1. Подготовка: ставка прочитана как pending, потом отозвана
	st, db := testutil.NewTestStore(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	gig := testutil.CreateGig(t, db, owner.ID, "Withdrawn target")
	b1 := testutil.CreateBid(t, db, gig.ID, alice.ID, 100)
	b2 := testutil.CreateBid(t, db, gig.ID, bob.ID, 120)

	b2Before := *testutil.ReloadBid(t, db, b2.ID)
	require.NoError(t, repositories.NewBidRepository().Delete(db, b2.ID))

	c := coordinatorWith(st,
		repositories.NewGigRepository(),
		&staleBidRepo{BidRepository: repositories.NewBidRepository(), bids: map[string]models.Bid{b2.ID: b2Before}},
	)

	// 2. Найм
	_, err := c.Hire(ctx, b2.ID, owner.ID)

	// 3. Проверка: CAS откатился вместе с транзакцией
	assert.ErrorIs(t, err, apperrors.ErrBidNotPending)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	reloaded := testutil.ReloadGig(t, db, gig.ID)
	assert.Equal(t, models.GigStatusOpen, reloaded.Status)
	assert.Equal(t, gig.Version, reloaded.Version)
	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, b1.ID).Status)
	assert.Zero(t, testutil.CountOutbox(t, db, events.TopicBidHired))

	t.Logf("ОТЗЫВ: найм отозванной ставки откатан - Успешно.")
}

func TestHire_SiblingsChangedRollsBack(t *testing.T) {
	// 1. Подготовка: в наборе pending-ставок есть уже отозванная
	st, db := testutil.NewTestStore(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	gig := testutil.CreateGig(t, db, owner.ID, "Shifting siblings")
	b1 := testutil.CreateBid(t, db, gig.ID, alice.ID, 100)
	b2 := testutil.CreateBid(t, db, gig.ID, bob.ID, 120)
	b3 := testutil.CreateBid(t, db, gig.ID, carol.ID, 90)

	b3Before := *testutil.ReloadBid(t, db, b3.ID)
	require.NoError(t, repositories.NewBidRepository().Delete(db, b3.ID))

	c := coordinatorWith(st,
		repositories.NewGigRepository(),
		&staleBidRepo{BidRepository: repositories.NewBidRepository(), extraPending: []models.Bid{b3Before}},
	)

	// 2. Найм
	_, err := c.Hire(ctx, b1.ID, owner.ID)

	// 3. Проверка: отклонено меньше, чем ожидалось, транзакция прервана
	assert.ErrorIs(t, err, apperrors.ErrSiblingsChanged)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	reloaded := testutil.ReloadGig(t, db, gig.ID)
	assert.Equal(t, models.GigStatusOpen, reloaded.Status)
	assert.Equal(t, gig.Version, reloaded.Version)
	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, b1.ID).Status)
	assert.Equal(t, models.BidStatusPending, testutil.ReloadBid(t, db, b2.ID).Status)
	assert.Zero(t, testutil.CountOutbox(t, db, events.TopicBidHired))

	t.Logf("СОСЕДИ: расхождение числа отклоненных откатило найм - Успешно.")
}

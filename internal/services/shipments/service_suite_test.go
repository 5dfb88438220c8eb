package shipments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	cachemocks "github.com/BearBump/ShipBox/internal/cache/mocks"
	shipmentsmocks "github.com/BearBump/ShipBox/internal/services/shipments/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo     *shipmentsmocks.MockRepository
	cache    *cachemocks.MockBytesCache
	producer *shipmentsmocks.MockProducer
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &shipmentsmocks.MockRepository{}
	s.cache = &cachemocks.MockBytesCache{}
	s.producer = &shipmentsmocks.MockProducer{}
	s.svc = New(s.repo, s.cache, s.producer).WithSettings(Settings{EventsTopic: "shipment.events"})
}

func validCreateRequest() models.CreateShipmentRequest {
	return models.CreateShipmentRequest{
		Origin:      " Bogota ",
		Destination: "Medellin",
		Weight:      decimal.RequireFromString("2.5"),
		Length:      decimal.NewFromInt(30),
		Width:       decimal.NewFromInt(20),
		Height:      decimal.NewFromInt(15),
		QuotedPrice: decimal.RequireFromString("800"),
	}
}

func (s *ServiceSuite) TestCreateShipment_OK() {
	s.repo.On("CreateShipment", mock.Anything, mock.MatchedBy(func(in models.ShipmentCreateInput) bool {
		return in.UserID == 1 && in.Origin == "Bogota" && len(in.TrackingNumber) == 17
	})).Return(sampleShipment(11, 1), nil).Once()
	s.cache.On("DeletePattern", mock.Anything, "shipments:user:1:*").Return(nil).Once()
	s.producer.On("Publish", mock.Anything, "shipment.events", []byte("11"), mock.MatchedBy(func(b []byte) bool {
		var ev messages.ShipmentEvent
		return json.Unmarshal(b, &ev) == nil && ev.Type == messages.ShipmentEventCreated && ev.Status == "waiting"
	})).Return(nil).Once()

	res, err := s.svc.CreateShipment(context.Background(), 1, validCreateRequest())
	s.Require().NoError(err)
	s.Require().Equal(uint64(11), res.ID)
	s.Require().Equal(models.ShipmentStatusWaiting, res.Status)
	s.Require().Equal("Shipment created successfully with 'waiting' status", res.Message)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
	s.producer.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateShipment_ValidationNoWrites() {
	req := validCreateRequest()
	req.Weight = decimal.Zero

	_, err := s.svc.CreateShipment(context.Background(), 1, req)
	s.Require().Error(err)
	s.Require().True(apperr.Is(err, apperr.KindValidation))

	var ae *apperr.Error
	s.Require().True(errors.As(err, &ae))
	s.Require().Equal("weight", ae.Field)

	s.repo.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
	s.producer.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateShipment_OutOfRangeIsValidation() {
	for _, tc := range []struct {
		field  string
		mutate func(r *models.CreateShipmentRequest)
	}{
		{"weight", func(r *models.CreateShipmentRequest) { r.Weight = decimal.RequireFromString("1e9") }},
		{"quotedPrice", func(r *models.CreateShipmentRequest) { r.QuotedPrice = decimal.RequireFromString("800.000001") }},
	} {
		req := validCreateRequest()
		tc.mutate(&req)

		_, err := s.svc.CreateShipment(context.Background(), 1, req)
		var ae *apperr.Error
		s.Require().True(errors.As(err, &ae))
		s.Require().Equal(apperr.KindValidation, ae.Kind)
		s.Require().Equal(tc.field, ae.Field)
	}
	s.repo.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateShipment_Unauthenticated() {
	_, err := s.svc.CreateShipment(context.Background(), 0, validCreateRequest())
	s.Require().True(apperr.Is(err, apperr.KindUnauthorized))
	s.repo.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateShipment_RetriesOnCollision() {
	var seen []string
	s.repo.On("CreateShipment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = append(seen, args.Get(1).(models.ShipmentCreateInput).TrackingNumber) }).
		Return(nil, models.ErrTrackingNumberTaken).Once()
	s.repo.On("CreateShipment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = append(seen, args.Get(1).(models.ShipmentCreateInput).TrackingNumber) }).
		Return(sampleShipment(3, 1), nil).Once()
	s.cache.On("DeletePattern", mock.Anything, "shipments:user:1:*").Return(nil).Once()
	s.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	res, err := s.svc.CreateShipment(context.Background(), 1, validCreateRequest())
	s.Require().NoError(err)
	s.Require().Equal(uint64(3), res.ID)
	s.Require().Len(seen, 2)
	s.Require().NotEqual(seen[0], seen[1])
}

func (s *ServiceSuite) TestCreateShipment_GivesUpAfterAttempts() {
	svc := New(s.repo, nil, nil).WithSettings(Settings{TrackingAttempts: 3})
	s.repo.On("CreateShipment", mock.Anything, mock.Anything).Return(nil, models.ErrTrackingNumberTaken).Times(3)

	_, err := svc.CreateShipment(context.Background(), 1, validCreateRequest())
	s.Require().True(apperr.Is(err, apperr.KindDependencyFailure))
	s.Require().Equal("internal server error", err.Error())
	s.repo.AssertNumberOfCalls(s.T(), "CreateShipment", 3)
}

func (s *ServiceSuite) TestCreateShipment_StorageErrorSanitized() {
	s.repo.On("CreateShipment", mock.Anything, mock.Anything).
		Return(nil, errors.New("pq: relation shipments does not exist")).Once()

	_, err := s.svc.CreateShipment(context.Background(), 1, validCreateRequest())
	s.Require().True(apperr.Is(err, apperr.KindDependencyFailure))
	s.Require().NotContains(err.Error(), "relation")
	s.cache.AssertNotCalled(s.T(), "DeletePattern", mock.Anything, mock.Anything)
	s.producer.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateShipment_CacheAndBrokerFailuresIgnored() {
	s.repo.On("CreateShipment", mock.Anything, mock.Anything).Return(sampleShipment(4, 1), nil).Once()
	s.cache.On("DeletePattern", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
	s.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

	res, err := s.svc.CreateShipment(context.Background(), 1, validCreateRequest())
	s.Require().NoError(err)
	s.Require().Equal(uint64(4), res.ID)
}

func (s *ServiceSuite) TestGetShipmentByID_CacheHitSkipsStorage() {
	b, _ := json.Marshal(sampleShipment(7, 1))
	s.cache.On("Get", mock.Anything, "shipment:7").Return(b, true, nil).Once()

	sh, err := s.svc.GetShipmentByID(context.Background(), 7)
	s.Require().NoError(err)
	s.Require().Equal(uint64(7), sh.ID)
	s.Require().True(sh.QuotedPrice.Equal(decimal.NewFromInt(800)))
	s.repo.AssertNotCalled(s.T(), "GetShipmentByID", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetShipmentByID_MissStoresWithTTL() {
	s.cache.On("Get", mock.Anything, "shipment:7").Return(nil, false, nil).Once()
	s.repo.On("GetShipmentByID", mock.Anything, uint64(7)).Return(sampleShipment(7, 1), nil).Once()
	s.cache.On("Set", mock.Anything, "shipment:7", mock.Anything, 10*time.Minute).Return(errors.New("set failed")).Once()

	sh, err := s.svc.GetShipmentByID(context.Background(), 7)
	s.Require().NoError(err)
	s.Require().Equal(uint64(7), sh.ID)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetUserShipment_OtherOwnerIsNotFound() {
	s.cache.On("Get", mock.Anything, "shipment:7").Return(nil, false, nil).Once()
	s.repo.On("GetShipmentByID", mock.Anything, uint64(7)).Return(sampleShipment(7, 2), nil).Once()
	s.cache.On("Set", mock.Anything, "shipment:7", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := s.svc.GetUserShipment(context.Background(), 1, 7)
	s.Require().True(apperr.Is(err, apperr.KindNotFound))
}

func (s *ServiceSuite) TestGetUserShipments_MissStoresList() {
	s.cache.On("Get", mock.Anything, "shipments:user:1:list").Return(nil, false, nil).Once()
	s.repo.On("ListShipmentsByUser", mock.Anything, uint64(1)).Return([]*models.Shipment{}, nil).Once()
	s.cache.On("Set", mock.Anything, "shipments:user:1:list", []byte("[]"), 5*time.Minute).Return(nil).Once()

	out, err := s.svc.GetUserShipments(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Empty(out)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetShipmentTracking_OK() {
	sh := sampleShipment(8, 1)
	s.repo.On("GetShipmentByTrackingNumber", mock.Anything, sh.TrackingNumber).Return(sh, nil).Once()
	s.repo.On("ListStatusHistory", mock.Anything, uint64(8)).Return([]*models.ShipmentStatusHistory{
		{ID: 1, ShipmentID: 8, Status: models.ShipmentStatusWaiting, Description: models.InitialHistoryDescription},
	}, nil).Once()

	view, err := s.svc.GetShipmentTracking(context.Background(), sh.TrackingNumber)
	s.Require().NoError(err)
	s.Require().Len(view.History, 1)
	s.Require().Equal(models.ShipmentStatusWaiting, view.History[0].Status)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetShipmentTracking_NotFound() {
	s.repo.On("GetShipmentByTrackingNumber", mock.Anything, "ENV000").Return(nil, models.ErrNotFound).Once()

	_, err := s.svc.GetShipmentTracking(context.Background(), "ENV000")
	s.Require().True(apperr.Is(err, apperr.KindNotFound))

	_, err = s.svc.GetShipmentTracking(context.Background(), "  ")
	s.Require().True(apperr.Is(err, apperr.KindValidation))
}

func (s *ServiceSuite) TestTransitionStatus_NextStep() {
	cur := sampleShipment(5, 1)
	upd := sampleShipment(5, 1)
	upd.Status = models.ShipmentStatusInTransit

	s.repo.On("GetShipmentByID", mock.Anything, uint64(5)).Return(cur, nil).Once()
	s.repo.On("ApplyStatusTransition", mock.Anything, models.StatusTransition{
		ShipmentID:  5,
		From:        models.ShipmentStatusWaiting,
		To:          models.ShipmentStatusInTransit,
		Description: "Picked up",
	}).Return(upd, nil).Once()
	s.cache.On("Delete", mock.Anything, []string{"shipment:5"}).Return(nil).Once()
	s.cache.On("DeletePattern", mock.Anything, "shipments:user:1:*").Return(nil).Once()
	s.producer.On("Publish", mock.Anything, "shipment.events", []byte("5"), mock.Anything).Return(nil).Once()

	out, err := s.svc.TransitionStatus(context.Background(), 5, models.StatusTransitionRequest{
		Status:      models.ShipmentStatusInTransit,
		Description: "Picked up",
	})
	s.Require().NoError(err)
	s.Require().Equal(models.ShipmentStatusInTransit, out.Status)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestTransitionStatus_RejectsSkipAndBackwards() {
	s.repo.On("GetShipmentByID", mock.Anything, uint64(5)).Return(sampleShipment(5, 1), nil).Twice()

	_, err := s.svc.TransitionStatus(context.Background(), 5, models.StatusTransitionRequest{
		Status: models.ShipmentStatusDelivered, Description: "Skipped",
	})
	s.Require().True(apperr.Is(err, apperr.KindValidation))

	_, err = s.svc.TransitionStatus(context.Background(), 5, models.StatusTransitionRequest{
		Status: models.ShipmentStatusWaiting, Description: "Again",
	})
	s.Require().True(apperr.Is(err, apperr.KindValidation))
	s.repo.AssertNotCalled(s.T(), "ApplyStatusTransition", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransitionStatus_ConcurrentChangeIsConflict() {
	s.repo.On("GetShipmentByID", mock.Anything, uint64(5)).Return(sampleShipment(5, 1), nil).Once()
	s.repo.On("ApplyStatusTransition", mock.Anything, mock.Anything).Return(nil, models.ErrStatusConflict).Once()

	_, err := s.svc.TransitionStatus(context.Background(), 5, models.StatusTransitionRequest{
		Status: models.ShipmentStatusInTransit, Description: "Picked up",
	})
	s.Require().True(apperr.Is(err, apperr.KindConflict))
	s.cache.AssertNotCalled(s.T(), "Delete", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransitionUserShipment_ForeignShipment() {
	s.repo.On("GetShipmentByID", mock.Anything, uint64(5)).Return(sampleShipment(5, 2), nil).Once()

	_, err := s.svc.TransitionUserShipment(context.Background(), 1, 5, models.StatusTransitionRequest{
		Status: models.ShipmentStatusInTransit, Description: "Picked up",
	})
	s.Require().True(apperr.Is(err, apperr.KindNotFound))
	s.repo.AssertNotCalled(s.T(), "ApplyStatusTransition", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestApplyReportedStatus_DropsStaleReports() {
	sh := sampleShipment(5, 1)
	sh.Status = models.ShipmentStatusDelivered
	s.repo.On("GetShipmentByTrackingNumber", mock.Anything, sh.TrackingNumber).Return(sh, nil).Once()
	s.repo.On("GetShipmentByTrackingNumber", mock.Anything, "ENV404").Return(nil, models.ErrNotFound).Once()

	err := s.svc.ApplyReportedStatus(context.Background(), messages.ShipmentStatusReported{
		TrackingNumber: sh.TrackingNumber, Status: "in_transit", Description: "late",
	})
	s.Require().NoError(err)

	err = s.svc.ApplyReportedStatus(context.Background(), messages.ShipmentStatusReported{
		TrackingNumber: "ENV404", Status: "in_transit", Description: "x",
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestApplyReportedStatus_DependencyErrorReturned() {
	s.repo.On("GetShipmentByTrackingNumber", mock.Anything, "ENV1").Return(nil, errors.New("conn reset")).Once()

	err := s.svc.ApplyReportedStatus(context.Background(), messages.ShipmentStatusReported{
		TrackingNumber: "ENV1", Status: "in_transit", Description: "x",
	})
	s.Require().Error(err)
	s.Require().True(apperr.Is(err, apperr.KindDependencyFailure))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// Package features detects keypoints in grayscale images, describes their
// neighborhoods with binary descriptors and matches descriptor sets.
//
// The keypoint response is a replaceable Strength strategy. Two are provided:
// Hessian (absolute determinant of the Hessian) and Contrast (local standard
// deviation). Descriptors are 64-bit census codes compared by Hamming
// distance. Other detectors, such as the OpenCV AKAZE extractor in the akaze
// subpackage, plug in through the Extractor interface.
package features
